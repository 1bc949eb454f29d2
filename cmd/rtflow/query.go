package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oncobeam/rtflow/qr"
)

var queryStudyUID string

var queryCmd = &cobra.Command{
	Use:   "query [patient-id]",
	Short: "Find studies for a patient, or series with --study",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if queryStudyUID == "" && len(args) == 0 {
			return fmt.Errorf("a patient ID argument or --study is required")
		}

		assoc, err := connectRemote()
		if err != nil {
			return err
		}
		defer assoc.Close()

		qrClient := qr.NewClient(assoc, slog.Default())

		if queryStudyUID != "" {
			series, err := qrClient.FindSeries(queryStudyUID)
			if err != nil {
				return err
			}
			for _, s := range series {
				fmt.Printf("%s  %-8s #%-4s %4d instances  %s\n",
					s.InstanceUID, s.Modality, s.Number, s.NumberOfInstances, s.Description)
			}
			fmt.Printf("%d series in study %s\n", len(series), queryStudyUID)
			return nil
		}

		studies, err := qrClient.FindStudies(args[0])
		if err != nil {
			return err
		}
		for _, s := range studies {
			fmt.Printf("%s  %s  [%s]  %s\n",
				s.InstanceUID, s.Date, strings.Join(s.ModalitiesInStudy, ","), s.Description)
		}
		fmt.Printf("%d studies for patient %s\n", len(studies), args[0])
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryStudyUID, "study", "", "list the series of this study instead of studies")
	rootCmd.AddCommand(queryCmd)
}
