package main

import (
	"fmt"
	"time"

	"cmsbackup/internal/model"
)

func printRecordLine(rec *model.BackupRecord) {
	trigger := "manual"
	if rec.IsAutomatic {
		trigger = "auto"
	}
	fmt.Printf("#%-5d %-9s %-10s %-7s %-7s %s  %10s  %s\n",
		rec.ID,
		rec.Kind,
		rec.Status,
		rec.Operation,
		trigger,
		rec.CreatedAt.Format("2006-01-02 15:04:05"),
		formatBytes(rec.SizeBytes+rec.MediaBytes),
		rec.Name,
	)
}

func printRecord(rec *model.BackupRecord) {
	fmt.Printf("Backup #%d: %s\n", rec.ID, rec.Name)
	if rec.Description != "" {
		fmt.Printf("  Description: %s\n", rec.Description)
	}
	fmt.Printf("  Kind:        %s\n", rec.Kind)
	fmt.Printf("  Status:      %s (%s)\n", rec.Status, rec.Operation)
	fmt.Printf("  Automatic:   %v\n", rec.IsAutomatic)
	if rec.CreatedBy != nil {
		fmt.Printf("  Created by:  %s\n", rec.CreatedBy.Name)
	}
	fmt.Printf("  Created:     %s\n", rec.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Started:     %s\n", formatTime(rec.StartedAt))
	fmt.Printf("  Completed:   %s\n", formatTime(rec.CompletedAt))
	if rec.PayloadRef != "" {
		fmt.Printf("  Payload:     %s (%s)\n", rec.PayloadRef, formatBytes(rec.SizeBytes))
	}
	if rec.MediaRef != "" {
		fmt.Printf("  Media:       %s (%s)\n", rec.MediaRef, formatBytes(rec.MediaBytes))
	}
	if rec.ErrorMessage != "" {
		fmt.Printf("  Error:       %s\n", rec.ErrorMessage)
	}
}

func printPolicy(p *model.BackupPolicy) {
	state := "enabled"
	if !p.Enabled {
		state = "disabled"
	}
	fmt.Printf("#%-4d %-9s %-8s %-8s keep %3dd  at %s  last %s  next %s  %s\n",
		p.ID,
		p.Kind,
		p.Frequency,
		state,
		p.RetentionDays,
		p.ScheduledTimeOfDay,
		formatTime(p.LastRunAt),
		formatTime(p.NextRunAt),
		p.Name,
	)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
