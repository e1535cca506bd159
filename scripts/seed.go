package main

import (
	"context"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/visionwell/vision-screening/backend/internal/adapters/search"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/clients/postgres"
	"github.com/visionwell/vision-screening/backend/internal/infrastructure/clients/typesense"
	"github.com/visionwell/vision-screening/backend/pkg/config"
)

type frameSeed struct {
	Code  string
	Model string
	Color string
	Size  string
	Stock int
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err == nil {
		searchRepo := search.NewTypesenseAdapter(tsClient)
		if err := searchRepo.InitSchema(context.Background()); err != nil {
			log.Printf("Failed to init search schema: %v", err)
		}
	}

	ctx := context.Background()
	db := pgClient.DB()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := db.ExecContext(ctx, `
			TRUNCATE TABLE
				frame_reservations,
				screening_sessions,
				glasses_frames
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	// Frame catalog for a typical school screening campaign. Stock levels
	// are per-campaign, not warehouse totals.
	frames := []frameSeed{
		{Code: "FR-KID-BLU-S", Model: "Lanre Kids Flex", Color: "Blue", Size: "S", Stock: 40},
		{Code: "FR-KID-BLU-M", Model: "Lanre Kids Flex", Color: "Blue", Size: "M", Stock: 60},
		{Code: "FR-KID-RED-S", Model: "Lanre Kids Flex", Color: "Red", Size: "S", Stock: 35},
		{Code: "FR-KID-RED-M", Model: "Lanre Kids Flex", Color: "Red", Size: "M", Stock: 50},
		{Code: "FR-TEEN-BLK-M", Model: "Zuri Teen Classic", Color: "Black", Size: "M", Stock: 45},
		{Code: "FR-TEEN-BLK-L", Model: "Zuri Teen Classic", Color: "Black", Size: "L", Stock: 30},
		{Code: "FR-TEEN-TRT-M", Model: "Zuri Teen Classic", Color: "Tortoise", Size: "M", Stock: 25},
		{Code: "FR-SPT-GRN-M", Model: "Kano Sport Wrap", Color: "Green", Size: "M", Stock: 20},
		{Code: "FR-SPT-GRN-L", Model: "Kano Sport Wrap", Color: "Green", Size: "L", Stock: 15},
	}

	for _, f := range frames {
		_, err := db.ExecContext(
			ctx,
			`INSERT INTO glasses_frames (code, model, color, size, stock, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			 ON CONFLICT (code) DO UPDATE SET stock = EXCLUDED.stock, updated_at = NOW()`,
			f.Code, f.Model, f.Color, f.Size, f.Stock,
		)
		if err != nil {
			log.Printf("Failed to seed frame %s: %v", f.Code, err)
		}
	}

	// A couple of in-progress sessions so a fresh environment has
	// something to resume against.
	demoSessions := []struct {
		StudentID string
		Step      int
	}{
		{StudentID: "stu-demo-001", Step: 0},
		{StudentID: "stu-demo-002", Step: 2},
	}

	if os.Getenv("SEED_DEMO_SESSIONS") == "true" {
		for _, s := range demoSessions {
			_, err := db.ExecContext(
				ctx,
				`INSERT INTO screening_sessions (id, student_id, operator_id, current_step, step_data, status, created_at, updated_at)
				 VALUES ($1, $2, 'op-demo', $3, '{}', 'in_progress', NOW(), NOW())`,
				uuid.New().String(), s.StudentID, s.Step,
			)
			if err != nil {
				log.Printf("Failed to seed demo session for %s: %v", s.StudentID, err)
			}
		}
	}

	log.Printf("Seeding completed: %d frame models stocked", len(frames))
}
