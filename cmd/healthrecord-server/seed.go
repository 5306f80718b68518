package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"github.com/familyhealth/healthrecord/internal/domain/clinical"
	"github.com/familyhealth/healthrecord/internal/domain/identity"
	"github.com/familyhealth/healthrecord/internal/domain/medication"
	"github.com/familyhealth/healthrecord/internal/platform/db"
)

var (
	seedConditions  = []string{"Asthma", "Hypertension", "Diabetes", "Migraine", "Eczema"}
	seedMedications = []string{"Aspirin", "Ibuprofen", "Paracetamol", "Metformin", "Salbutamol"}
	seedSeverities  = []clinical.Severity{clinical.SeverityMild, clinical.SeverityModerate, clinical.SeveritySevere}
)

// family is one generated household: the first patient is the parent.
type family struct {
	patients     []*identity.Patient
	observations []*clinical.Observation
	conditions   []*clinical.Condition
	medications  []*medication.Medication
}

func seedCmd() *cobra.Command {
	var (
		families, members, readings int
		seed                        int64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the database with generated families for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to seed a production database")
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			gofakeit.Seed(seed)
			now := time.Now()

			for i := 0; i < families; i++ {
				fam, err := generateFamily(members, readings, now)
				if err != nil {
					return err
				}
				if err := db.WithTx(ctx, a.pool, func(ctx context.Context) error {
					return a.saveFamily(ctx, fam)
				}); err != nil {
					return fmt.Errorf("seed family %d: %w", i+1, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "family %d: parent %s (%s), %d members\n",
					i+1, fam.patients[0].ID, fam.patients[0].FullName(), len(fam.patients))
			}
			logger.Info().Int("families", families).Int64("seed", seed).Msg("seed complete")
			return nil
		},
	}
	cmd.Flags().IntVar(&families, "families", 3, "Number of families")
	cmd.Flags().IntVar(&members, "members", 3, "Patients per family, parent included")
	cmd.Flags().IntVar(&readings, "readings", 5, "Vital sign readings per patient")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed, 0 for time based")
	return cmd
}

func generateFamily(members, readings int, now time.Time) (*family, error) {
	if members < 1 {
		return nil, fmt.Errorf("a family needs at least one member")
	}
	fam := &family{}
	lastName := gofakeit.LastName()

	for i := 0; i < members; i++ {
		dob := gofakeit.DateRange(now.AddDate(-70, 0, 0), now.AddDate(-25, 0, 0))
		if i > 0 {
			dob = gofakeit.DateRange(now.AddDate(-17, 0, 0), now.AddDate(-1, 0, 0))
		}
		gender := identity.GenderFemale
		if gofakeit.Bool() {
			gender = identity.GenderMale
		}
		p, err := identity.NewPatient(gofakeit.Email(), gofakeit.FirstName(), lastName, dob, gender, now)
		if err != nil {
			return nil, fmt.Errorf("generate patient: %w", err)
		}
		if i > 0 {
			if err := p.LinkToParent(fam.patients[0].ID, "Child"); err != nil {
				return nil, err
			}
		} else if err := p.UpdateEmergencyContact(gofakeit.FirstName()+" "+lastName, gofakeit.Phone(), "Spouse"); err != nil {
			return nil, err
		}
		fam.patients = append(fam.patients, p)

		if err := fam.addRecords(p, readings, now); err != nil {
			return nil, err
		}
	}
	return fam, nil
}

func (f *family) addRecords(p *identity.Patient, readings int, now time.Time) error {
	recorder := "Self"
	if p.ParentPatientID != nil {
		recorder = "Parent"
	}
	for r := 0; r < readings; r++ {
		at := gofakeit.DateRange(now.AddDate(0, -6, 0), now)
		w, err := clinical.NewWeight(p.ID, gofakeit.Float64Range(12, 110), at, recorder)
		if err != nil {
			return err
		}
		bp, err := clinical.NewBloodPressure(p.ID, gofakeit.Number(95, 160), gofakeit.Number(60, 100), at, recorder)
		if err != nil {
			return err
		}
		f.observations = append(f.observations, w, bp)
	}

	cond, err := clinical.NewCondition(p.ID, gofakeit.RandomString(seedConditions), clinical.ConditionInput{
		Severity:   seedSeverities[gofakeit.Number(0, len(seedSeverities)-1)],
		RecordedBy: recorder,
	}, now)
	if err != nil {
		return err
	}
	f.conditions = append(f.conditions, cond)

	dosage := fmt.Sprintf("%dmg", gofakeit.Number(1, 10)*50)
	med, err := medication.NewMedication(p.ID, gofakeit.RandomString(seedMedications), medication.Input{
		Dosage:     &dosage,
		RecordedBy: recorder,
	}, now)
	if err != nil {
		return err
	}
	f.medications = append(f.medications, med)
	return nil
}

func (a *app) saveFamily(ctx context.Context, f *family) error {
	for _, p := range f.patients {
		if err := a.patientRepo.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
	}
	for _, o := range f.observations {
		if err := a.obsRepo.Create(ctx, o); err != nil {
			return fmt.Errorf("create observation: %w", err)
		}
	}
	for _, c := range f.conditions {
		if err := a.condRepo.Create(ctx, c); err != nil {
			return fmt.Errorf("create condition: %w", err)
		}
	}
	for _, m := range f.medications {
		if err := a.medRepo.Create(ctx, m); err != nil {
			return fmt.Errorf("create medication: %w", err)
		}
	}
	return nil
}
