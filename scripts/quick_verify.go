package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"p9e.in/lppsync/config"
	"p9e.in/lppsync/pkg/register"
)

func main() {
	projNum := flag.String("proj", "", "Only check this project")
	flag.Parse()

	cfg := config.Load()
	db, err := config.Open(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	fmt.Println("========================================")
	fmt.Println("VERIFICATION: Drawing register")
	fmt.Println("========================================")

	svc := register.NewDrawingService(db)
	stats, err := svc.RegisterStats()
	if err != nil {
		log.Fatal("Failed to read register stats:", err)
	}
	fmt.Printf("Projects: %d  Drawings: %d  DWG files: %d\n\n", stats.TotalProjects, stats.TotalDrawings, stats.TotalDWGs)
	for _, d := range stats.DWGs {
		fmt.Printf("  %-40s %5d\n", d.DWGSource, d.Count)
	}
	fmt.Println()
	for _, st := range stats.States {
		fmt.Printf("  %-20s %5d\n", st.Label, st.Count)
	}

	rep, err := svc.Audit(*projNum)
	if err != nil {
		log.Fatal("Audit failed:", err)
	}
	fmt.Printf("\nChecked %d drawings, %d issue(s)\n", rep.Drawings, len(rep.Issues))
	for _, is := range rep.Issues {
		fmt.Printf("  #%d %s: %s\n", is.DrawingID, is.LayoutName, is.Problem)
	}
	if len(rep.Issues) > 0 {
		os.Exit(1)
	}
}
