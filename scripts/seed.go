//go:build ignore

package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hugh/scansync/internal/auth"
	"github.com/hugh/scansync/internal/database"
	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/integration"
	"github.com/hugh/scansync/internal/integration/filesource"
	"github.com/hugh/scansync/pkg/config"
	"github.com/hugh/scansync/pkg/util"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Seeds a demo plan, writes a matching file export and prints a service
// token to drive the sync endpoints with.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Log.Level)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	userID := os.Getenv("SEED_USER_ID")
	if userID == "" {
		userID = "assessor-1"
	}
	exportPath := os.Getenv("SEED_EXPORT_PATH")
	if exportPath == "" {
		exportPath = "seed-export.yaml"
	}

	plan := models.SecurityPlan{Title: "Demo System", SystemOwnerID: userID, Status: "Operational"}
	if err := db.Where("title = ?", plan.Title).FirstOrCreate(&plan).Error; err != nil {
		log.Fatalf("failed to create plan: %v", err)
	}

	controls := make(map[string]uint)
	for _, controlID := range []string{"AC-2", "AC-2(1)", "CM-6", "SI-2"} {
		impl := models.ControlImplementation{
			ParentID:     plan.ID,
			ParentModule: models.ModuleSecurityPlans,
			ControlID:    controlID,
			Status:       "Implemented",
			OwnerID:      userID,
		}
		if err := db.Where("parent_id = ? AND parent_module = ? AND control_id = ?",
			plan.ID, models.ModuleSecurityPlans, controlID).FirstOrCreate(&impl).Error; err != nil {
			log.Fatalf("failed to create control %s: %v", controlID, err)
		}
		controls[controlID] = impl.ID
	}

	now := time.Now().UTC()
	export := filesource.Export{
		Title:                "Demo STIG Export",
		Type:                 integration.TypeChecklist,
		AssetIdentifierField: "otherTrackingNumber",
		Assets: []filesource.AssetRecord{
			{Name: "web-01", Identifier: "web-01", IPAddress: "10.0.0.11", Components: []string{"Web Tier"}, LastUpdated: now},
			{Name: "db-01", Identifier: "db-01", IPAddress: "10.0.0.21", Components: []string{"Data Tier"}, LastUpdated: now},
		},
		Findings: []filesource.FindingRecord{
			{
				ExternalID: "V-230221", Title: "SSH daemon must not permit root login",
				Severity: "CAT I", Status: "Open", AssetIdentifier: "web-01",
				RuleID: "SV-230296r627750_rule", CCIRef: "CCI-000770",
				ControlIDs: []uint{controls["AC-2(1)"]}, Created: now, LastUpdated: now,
			},
			{
				ExternalID: "V-230222", Title: "Audit records must be retained",
				Severity: "CAT II", Status: "NotAFinding", AssetIdentifier: "db-01",
				ControlIDs: []uint{controls["CM-6"]}, Created: now, LastUpdated: now,
			},
		},
	}

	data, err := yaml.Marshal(export)
	if err != nil {
		log.Fatalf("failed to encode export: %v", err)
	}
	if err := os.WriteFile(exportPath, data, 0o644); err != nil {
		log.Fatalf("failed to write export: %v", err)
	}

	token, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry()).GenerateToken(userID, "")
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	fmt.Printf("Plan: %d (%s)\n", plan.ID, plan.Title)
	fmt.Printf("Export: %s\n", exportPath)
	fmt.Printf("Token: %s\n", token)
	fmt.Printf("Sync assets first: POST /api/v1/plans/%d/sync/assets {\"integration\":%q,\"source\":%q}\n",
		plan.ID, filesource.Name, exportPath)
}
