// Package syncer drives the one-way synchronization of tickets from the
// source trackers to the destination tracker.
package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/synctools/tracksync/config"
	"github.com/synctools/tracksync/logger"
	"github.com/synctools/tracksync/model"
	"github.com/synctools/tracksync/tracker"
	"github.com/synctools/tracksync/util"
	"go.uber.org/zap"
)

// Source is one tracker issues are pulled from, together with the fetch
// condition configured for it.
type Source struct {
	Tracker   tracker.Tracker
	Condition *config.Condition
}

// Engine syncs tickets from the sources into one destination tracker.
//
// New tickets are created on the destination and the source ticket is
// retitled with the destination id. Already synced tickets flow both ways:
// planning information (sprint) goes back to the source, status, description
// and story point go to the destination.
type Engine struct {
	sources     []Source
	destination tracker.Tracker
	users       *model.UserDirectory
	dryRun      bool
}

func NewEngine(sources []Source, destination tracker.Tracker, users *model.UserDirectory, dryRun bool) *Engine {
	return &Engine{
		sources:     sources,
		destination: destination,
		users:       users,
		dryRun:      dryRun,
	}
}

// FromConfig connects all configured trackers and assembles the engine.
func FromConfig(cfg *config.Config) (*Engine, error) {
	destType := cfg.DestinationType()
	destCfg, ok := cfg.Tracker[string(destType)]
	if !ok {
		return nil, fmt.Errorf("missing tracker configuration for destination '%s'", destType)
	}
	destination, err := tracker.New(destType, destCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect destination tracker '%s': %w", destType, err)
	}
	sources := make([]Source, 0, len(cfg.Source))
	for _, name := range cfg.Source {
		sourceCfg, ok := cfg.Tracker[name]
		if !ok {
			return nil, fmt.Errorf("missing tracker configuration for source '%s'", name)
		}
		sourceTracker, err := tracker.New(model.TrackerType(name), sourceCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect source tracker '%s': %w", name, err)
		}
		condition := sourceCfg.Condition
		sources = append(sources, Source{Tracker: sourceTracker, Condition: &condition})
	}
	return NewEngine(sources, destination, model.NewUserDirectory(cfg.Users()), cfg.DryRun), nil
}

// Run executes one sync pass over all sources.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	report := newReport(e.destination.Type(), e.dryRun)
	for _, source := range e.sources {
		sourceType := source.Tracker.Type()
		logger.Info("processing source tracker", zap.String("tracker", string(sourceType)))
		tickets, err := source.Tracker.GetTickets(ctx, source.Condition)
		if err != nil {
			return report, fmt.Errorf("failed to fetch tickets from '%s': %w", sourceType, err)
		}
		created, synced := 0, 0
		for _, ticket := range tickets {
			logger.Info(ticket.String())
			if ticket.IsSynced() {
				if e.syncTicket(ctx, source.Tracker, ticket, report) {
					synced++
				}
			} else if e.createTicket(ctx, source.Tracker, ticket, report) {
				created++
			}
		}
		logger.Info("source tracker processed",
			zap.String("tracker", string(sourceType)),
			zap.Int("total", created+synced),
			zap.Int("created", created),
			zap.String("destination", string(e.destination.Type())))
	}
	report.FinishedAt = time.Now()
	logger.Info("sync run finished",
		zap.String("run", report.ID),
		zap.Int("total", report.Total),
		zap.String("destination", string(e.destination.Type())))
	return report, nil
}

// assignee resolves the destination account of the first source assignee.
func (e *Engine) assignee(ticket *model.Ticket) string {
	account := ticket.Assignee()
	if account == "" {
		return ""
	}
	user := e.users.GetUser(account, ticket.Tracker)
	if user == nil {
		logger.Warn("no user mapping for assignee",
			zap.String("assignee", account), zap.String("tracker", string(ticket.Tracker)))
		return ""
	}
	return user.AccountID(e.destination.Type())
}

// createTicket creates the counterpart of a not yet synced ticket on the
// destination and marks the source ticket with the destination id. Reports
// whether the destination ticket was created.
func (e *Engine) createTicket(ctx context.Context, source tracker.Tracker, ticket *model.Ticket, report *Report) bool {
	if e.dryRun {
		report.add(ticket, "", STAGE_NEW)
		return true
	}
	description := fmt.Sprintf("Original issue url: %s\n\n%s", ticket.URL, ticket.Description)
	destinationID, err := e.destination.CreateTicket(ctx, &tracker.Draft{
		Title:       ticket.Title,
		Description: description,
		StoryPoint:  ticket.StoryPoint,
		Assignee:    e.assignee(ticket),
		Labels:      ticket.Labels,
	})
	if err != nil {
		logger.Error("failed to create destination ticket",
			zap.String("source", ticket.String()), zap.Error(err))
		report.add(ticket, "", STAGE_NOT_FOUND)
		return false
	}
	title := fmt.Sprintf("[ %s ] %s", destinationID, ticket.Title)
	if err := source.UpdateTicket(ctx, ticket.ID, tracker.Fields{Title: &title}); err != nil {
		logger.Error("failed to mark source ticket as synced",
			zap.String("source", ticket.String()), zap.Error(err))
	}
	logger.Info("created new destination ticket",
		zap.String("destination", string(e.destination.Type())), zap.String("id", destinationID))
	report.add(ticket, destinationID, STAGE_NEW)
	return true
}

// syncTicket reconciles an already synced ticket with its destination
// counterpart. Reports whether the pair was synced.
func (e *Engine) syncTicket(ctx context.Context, source tracker.Tracker, ticket *model.Ticket, report *Report) bool {
	destTicket, err := e.destination.GetTicket(ctx, ticket.DestinationID)
	if err != nil {
		logger.Warn("destination ticket cannot be found",
			zap.String("destination", string(e.destination.Type())),
			zap.String("id", ticket.DestinationID))
		report.add(ticket, ticket.DestinationID, STAGE_NOT_FOUND)
		return false
	}
	if e.dryRun {
		report.add(ticket, ticket.DestinationID, STAGE_SYNCED)
		return true
	}

	// planning information flows back to the source as a sprint label
	logger.Info("updating source ticket", zap.String("ticket", ticket.String()))
	if destTicket.Version != "" {
		if err := source.CreateLabel(ctx, destTicket.Version, tracker.SPRINT_LABEL_COLOR); err != nil {
			logger.Error("failed to create sprint label", zap.Error(err))
		} else {
			labels := util.AppendUnique(ticket.Labels, destTicket.Version)
			if err := source.UpdateTicket(ctx, ticket.ID, tracker.Fields{Labels: &labels}); err != nil {
				logger.Error("failed to add sprint label to source ticket", zap.Error(err))
			}
		}
	} else {
		logger.Warn("no version information from destination ticket to sync back",
			zap.String("id", ticket.DestinationID))
	}

	// status only changes on the source, the destination follows
	logger.Info("updating destination ticket", zap.String("id", destTicket.ID))
	if destTicket.Status != ticket.Status {
		if err := e.destination.UpdateTicketState(ctx, destTicket, ticket.Status); err != nil {
			logger.Error("failed to sync ticket status",
				zap.String("from", string(destTicket.Status)),
				zap.String("to", string(ticket.Status)), zap.Error(err))
		}
	}
	description := fmt.Sprintf("Original issue url: %s\n\n%s", ticket.URL, ticket.Description)
	storyPoint := ticket.StoryPoint
	err = e.destination.UpdateTicket(ctx, destTicket.ID, tracker.Fields{
		Description: &description,
		StoryPoint:  &storyPoint,
	})
	if err != nil {
		logger.Error("failed to update destination ticket",
			zap.String("id", destTicket.ID), zap.Error(err))
	}
	report.add(ticket, ticket.DestinationID, STAGE_SYNCED)
	return true
}
