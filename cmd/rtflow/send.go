package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/oncobeam/rtflow/collect"
	"github.com/oncobeam/rtflow/config"
	"github.com/oncobeam/rtflow/export"
	"github.com/oncobeam/rtflow/reftree"
	"github.com/oncobeam/rtflow/rt"
	"github.com/oncobeam/rtflow/scp"
)

var sendCmd = &cobra.Command{
	Use:   "send <folder>",
	Short: "Scan a folder of DICOM files and transmit the reconstructed trees to the remote node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := scp.ScanDirectory(args[0], slog.Default())
		if err != nil {
			return err
		}

		mapping, err := config.LoadMachineTables(cfg.Export.MachineTables)
		if err != nil {
			return err
		}

		status, err := export.OpenStatusLog(cfg.Export.StatusFile)
		if err != nil {
			return err
		}
		defer status.Close()

		// Every patient gets its own association; the status log is the
		// only shared state.
		var g errgroup.Group
		for _, patientID := range set.PatientIDs() {
			patientID := patientID
			g.Go(func() error {
				return sendPatient(set.Patient(patientID), mapping, status)
			})
		}
		return g.Wait()
	},
}

func sendPatient(store *collect.Store, mapping rt.MachineMapping, status *export.StatusLog) error {
	logger := slog.Default().With("patient_id", store.PatientID())

	for _, e := range store.Find(rt.ModalityPlan) {
		if plan, ok := e.Instance.(*rt.Plan); ok {
			mapping.Apply(plan)
		}
	}

	tree := reftree.Build(store, logger)

	assoc, err := connectRemote()
	if err != nil {
		return err
	}
	defer assoc.Close()

	orchestrator := export.NewOrchestrator(assoc, status, logger)
	result, err := orchestrator.SendTree(tree)
	if err != nil {
		return err
	}

	logger.Info("Patient transmitted", "sent", result.Sent, "skipped", result.Skipped)
	fmt.Printf("patient %s: %d sent, %d skipped\n", store.PatientID(), result.Sent, result.Skipped)
	return nil
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
