package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"healthledger/core/asset"
	"healthledger/core/config"
	"healthledger/core/logger"
	"healthledger/core/network"
	"healthledger/core/participant"
)

var (
	demoPatients   int
	demoDoctors    int
	demoResponders int
	demoReadings   int
	demoSeed       int64
	demoOutput     string
)

var departments = []string{"Cardiology", "Neurology", "Emergency", "Internal Medicine", "Pediatrics"}
var designations = []string{"Doctor", "Nurse", "Technician"}
var conditions = []string{"hypertension", "type 2 diabetes", "asthma", "migraine", "arrhythmia"}

type demoSummary struct {
	Participants int      `json:"participants"`
	PHIAssets    int      `json:"phi_assets"`
	Readings     int      `json:"readings"`
	Warnings     int      `json:"warnings"`
	Denied       int      `json:"denied"`
	Blocks       uint64   `json:"blocks"`
	Transactions int      `json:"transactions"`
	TipHash      string   `json:"tip_hash"`
	Valid        bool     `json:"valid"`
	Alerts       []string `json:"alerts,omitempty"`
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a synthetic hospital scenario against an in-process node",
	Example: `  healthledger demo
  healthledger demo --patients 20 --seed 42 -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *config.Get()
		cfg.Storage.Enabled = false
		cfg.Crypto.SignTxs = false
		log := logger.L()

		if demoSeed != 0 {
			if err := gofakeit.Seed(demoSeed); err != nil {
				return err
			}
		}

		n, err := buildNode(&cfg, false, log)
		if err != nil {
			return err
		}
		defer n.Close()

		sum, err := runDemo(n.net)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if demoOutput == "json" {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		}
		fmt.Fprintf(out, "Participants: %d\nPHI assets:   %d\nReadings:     %d\nWarnings:     %d\nDenied:       %d\nBlocks:       %d\nTransactions: %d\nTip:          %s\nValid:        %t\n",
			sum.Participants, sum.PHIAssets, sum.Readings, sum.Warnings, sum.Denied, sum.Blocks, sum.Transactions, sum.TipHash, sum.Valid)
		for _, a := range sum.Alerts {
			fmt.Fprintf(out, "  ! %s\n", a)
		}
		return nil
	},
}

func init() {
	demoCmd.Flags().IntVar(&demoPatients, "patients", 5, "number of synthetic patients")
	demoCmd.Flags().IntVar(&demoDoctors, "doctors", 3, "number of medical entities")
	demoCmd.Flags().IntVar(&demoResponders, "responders", 2, "number of emergency responders")
	demoCmd.Flags().IntVar(&demoReadings, "readings", 3, "readings uploaded per patient")
	demoCmd.Flags().Int64Var(&demoSeed, "seed", 0, "random seed (0 picks one)")
	demoCmd.Flags().StringVarP(&demoOutput, "output", "o", "plain", "Output format: plain|json")
}

func pick(xs []string) string {
	return xs[gofakeit.Number(0, len(xs)-1)]
}

// vitals returns a reading that is abnormal roughly one time in four.
func vitals(patientID string, at time.Time) network.ReadingInput {
	in := network.ReadingInput{PatientID: patientID, CapturedAt: at.Format(time.RFC3339)}
	if gofakeit.Number(1, 4) == 1 {
		in.BloodPressure = fmt.Sprintf("%d/%d", gofakeit.Number(145, 190), gofakeit.Number(92, 120))
		in.BodyTemperature = fmt.Sprintf("%.1f°F", gofakeit.Float64Range(100.5, 103))
		in.Pulse = fmt.Sprintf("%d bpm", gofakeit.Number(105, 140))
		return in
	}
	in.BloodPressure = fmt.Sprintf("%d/%d", gofakeit.Number(105, 130), gofakeit.Number(65, 85))
	in.BodyTemperature = fmt.Sprintf("%.1f°F", gofakeit.Float64Range(97.2, 99.1))
	in.Pulse = fmt.Sprintf("%d bpm", gofakeit.Number(60, 95))
	return in
}

func runDemo(net *network.Network) (demoSummary, error) {
	var sum demoSummary
	log := logger.L().Named("demo")

	admin, err := participant.NewAdmin("admin", "Demo Administrator", true)
	if err != nil {
		return sum, err
	}
	if err := net.AddParticipant(admin); err != nil {
		return sum, err
	}

	register := func(p participant.Participant, err error) (string, error) {
		if err != nil {
			return "", err
		}
		return p.ID, net.RegisterParticipant(admin.ID, p)
	}

	var doctors, responders, patients []string
	for i := 1; i <= demoDoctors; i++ {
		id, err := register(participant.NewMedicalEntity(fmt.Sprintf("doc-%03d", i), gofakeit.Name(), pick(designations), pick(departments)))
		if err != nil {
			return sum, err
		}
		doctors = append(doctors, id)
	}
	for i := 1; i <= demoResponders; i++ {
		id, err := register(participant.NewEmergencyResponder(fmt.Sprintf("ems-%03d", i), gofakeit.Name(), "paramedic"))
		if err != nil {
			return sum, err
		}
		responders = append(responders, id)
	}
	for i := 1; i <= demoPatients; i++ {
		kind := participant.PatientOutdoor
		if gofakeit.Bool() {
			kind = participant.PatientIndoor
		}
		id, err := register(participant.NewPatient(fmt.Sprintf("pat-%03d", i), gofakeit.Name(), kind))
		if err != nil {
			return sum, err
		}
		patients = append(patients, id)
	}
	if len(doctors) == 0 || len(patients) == 0 {
		return sum, fmt.Errorf("demo needs at least one doctor and one patient")
	}

	primary := make(map[string]string, len(patients))
	for _, pid := range patients {
		p, _ := net.Participant(pid)
		doc := pick(doctors)
		in := network.PHIInput{
			PatientID: pid,
			Demographics: asset.Demographics{
				Name:        p.Name,
				Gender:      gofakeit.Gender(),
				DateOfBirth: gofakeit.DateRange(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)).Format("2006-01-02"),
				Address:     gofakeit.Street() + ", " + gofakeit.City(),
				Contact:     gofakeit.PhoneFormatted(),
				Email:       gofakeit.Email(),
			},
			Conditions: map[string]string{"primary": pick(conditions)},
		}
		if _, err := net.UploadPHI(pid, in, doc); err != nil {
			return sum, fmt.Errorf("upload PHI for %s: %w", pid, err)
		}
		primary[pid] = doc
	}

	start := time.Now().UTC().Add(-time.Duration(demoReadings) * time.Hour)
	for _, pid := range patients {
		for r := 0; r < demoReadings; r++ {
			if _, err := net.UploadPPPs(pid, vitals(pid, start.Add(time.Duration(r)*time.Hour))); err != nil {
				return sum, fmt.Errorf("upload reading for %s: %w", pid, err)
			}
			sum.Readings++
		}
		res, err := net.PerformPredictiveAnalysis(contextOrBackground(demoCmd), primary[pid], pid)
		if err != nil {
			return sum, err
		}
		if len(res.Warnings) > 0 {
			sum.Warnings += len(res.Warnings)
			sum.Alerts = append(sum.Alerts, fmt.Sprintf("%s: %d early warning(s)", pid, len(res.Warnings)))
		}
	}

	// An unrelated doctor is refused, then a responder gets in through an
	// emergency that is resolved afterwards.
	target := patients[0]
	for _, d := range doctors {
		if d == primary[target] {
			continue
		}
		if _, err := net.AccessPHI(d, asset.PHIAssetID(target)); err != nil {
			sum.Denied++
		}
		break
	}
	if len(responders) > 0 {
		responder := responders[0]
		if _, err := net.TriggerEmergency(primary[target], target, []string{responder}); err != nil {
			return sum, err
		}
		if _, err := net.AccessPHI(responder, asset.PHIAssetID(target)); err != nil {
			return sum, err
		}
		if _, err := net.ResolveEmergency(primary[target], target, []string{responder}); err != nil {
			return sum, err
		}
		if _, err := net.AccessPHI(responder, asset.PHIAssetID(target)); err != nil {
			sum.Denied++
		}
	}

	if _, err := net.MineBlock(); err != nil {
		return sum, err
	}
	sum.Valid = net.VerifyIntegrity() == nil

	st := net.Status()
	sum.Participants = st.Participants
	sum.PHIAssets = st.PHIAssets
	sum.Blocks = st.Height + 1
	sum.TipHash = st.TipHash
	all, err := net.GetTransactionHistory("")
	if err != nil {
		return sum, err
	}
	sum.Transactions = len(all)
	log.Info("demo finished", zap.Int("transactions", sum.Transactions), zap.Int("warnings", sum.Warnings))
	return sum, nil
}
