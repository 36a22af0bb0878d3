package syncer

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/synctools/tracksync/model"
)

type Stage string

const (
	STAGE_NEW       Stage = "new"
	STAGE_SYNCED    Stage = "synced"
	STAGE_NOT_FOUND Stage = "not found"
)

// Row records the outcome for one processed source ticket.
type Row struct {
	No            int    `json:"no"`
	Ticket        string `json:"ticket"`
	SourceLink    string `json:"sourceLink"`
	DestinationID string `json:"destinationId"`
	Stage         Stage  `json:"stage"`
}

// Report collects the outcome of one sync run.
type Report struct {
	ID          string            `json:"id"`
	Destination model.TrackerType `json:"destination"`
	DryRun      bool              `json:"dryRun"`
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt"`
	Total       int               `json:"total"`
	Created     int               `json:"created"`
	Synced      int               `json:"synced"`
	Rows        []Row             `json:"rows"`
}

func newReport(destination model.TrackerType, dryRun bool) *Report {
	return &Report{
		ID:          uuid.NewString(),
		Destination: destination,
		DryRun:      dryRun,
		StartedAt:   time.Now(),
		Rows:        make([]Row, 0),
	}
}

func (r *Report) add(ticket *model.Ticket, destinationID string, stage Stage) {
	r.Total++
	r.Rows = append(r.Rows, Row{
		No:            r.Total,
		Ticket:        fmt.Sprintf("%s %s", titleCase(string(ticket.Tracker)), ticket.ID),
		SourceLink:    ticket.URL,
		DestinationID: fmt.Sprintf("%s %s", r.Destination, destinationID),
		Stage:         stage,
	})
	switch stage {
	case STAGE_NEW:
		r.Created++
	case STAGE_SYNCED:
		r.Synced++
	}
}

// WriteCSV stores the report rows to the given file.
func (r *Report) WriteCSV(filename string) error {
	var builder strings.Builder
	builder.WriteString("No., Ticket, Source Link, Destination ID, Stage\n")
	for _, row := range r.Rows {
		builder.WriteString(fmt.Sprintf("%d, %s, %s, %s, %s\n",
			row.No, row.Ticket, row.SourceLink, row.DestinationID, row.Stage))
	}
	return os.WriteFile(filename, []byte(builder.String()), 0644)
}

func titleCase(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
