package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/huangang/taskhub/internal/config"
	"github.com/huangang/taskhub/internal/models"
	"github.com/huangang/taskhub/internal/services"
)

// Recomputes the progress of every task that has subtasks from the subtask
// average. Useful after bulk imports that wrote subtasks directly.
func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	dryRun := flag.Bool("dry-run", false, "print changes without writing them")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	db, err := models.InitDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	fmt.Println("Connected to database successfully!")
	fmt.Println("")

	var tasks []models.Task
	if err := db.Where("id IN (?)", db.Model(&models.Subtask{}).Select("task_id")).
		Order("id ASC").Find(&tasks).Error; err != nil {
		log.Fatalf("Failed to query tasks: %v", err)
	}

	progress := services.NewProgressService(db)
	changed := 0

	fmt.Printf("%-6s %-8s %-40s %-8s %-8s\n", "ID", "Project", "Title", "Before", "After")
	fmt.Println("------------------------------------------------------------------------")
	for _, task := range tasks {
		computed, err := progress.TaskProgress(task.ID)
		if err != nil {
			log.Fatalf("Failed to compute progress for task %d: %v", task.ID, err)
		}
		if computed == task.Progress {
			continue
		}

		title := task.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		fmt.Printf("%-6d %-8d %-40s %-8d %-8d\n", task.ID, task.ProjectID, title, task.Progress, computed)

		if !*dryRun {
			if err := db.Model(&models.Task{ID: task.ID}).Update("progress", computed).Error; err != nil {
				log.Fatalf("Failed to update task %d: %v", task.ID, err)
			}
		}
		changed++
	}

	fmt.Println("")
	if *dryRun {
		fmt.Printf("Dry run: %d of %d tasks would change\n", changed, len(tasks))
		return
	}
	fmt.Printf("Updated %d of %d tasks\n", changed, len(tasks))
}
