package cmd

import (
	"context"
	"fmt"

	"github.com/frahmantamala/datashare/internal/core/events"
	"github.com/frahmantamala/datashare/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Publish change events to a local event bus to inspect how they are dispatched`,
}

var publishEventCmd = &cobra.Command{
	Use:       "publish [event-type]",
	Short:     "Publish a test event",
	Long:      `Publish a projects.changed or user.deleted event to the event bus for testing and debugging`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{events.EventTypeProjectsChanged, events.EventTypeUserDeleted},
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(args[0])
	},
}

var (
	eventOrigin    string
	eventProjectID int64
	eventAction    string
	eventUserID    string
)

func buildTestEvent(eventType string) (events.Event, error) {
	switch eventType {
	case events.EventTypeProjectsChanged:
		return events.NewProjectsChangedEvent(eventOrigin, eventProjectID, eventAction), nil
	case events.EventTypeUserDeleted:
		return events.NewUserDeletedEvent(eventUserID, eventOrigin), nil
	}
	return nil, fmt.Errorf("unknown event type %q", eventType)
}

func publishTestEvent(eventType string) error {
	logger := logger.LoggerWrapper()

	event, err := buildTestEvent(eventType)
	if err != nil {
		return err
	}

	eventBus := events.NewEventBus(logger)
	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		logger.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	logger.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	if err := eventBus.PublishSync(context.Background(), event); err != nil {
		logger.Error("failed to publish event", "error", err)
		return err
	}

	logger.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventOrigin, "origin", "cli", "Id of the user the event originates from")
	publishEventCmd.Flags().Int64Var(&eventProjectID, "project", 0, "Project id carried by projects.changed")
	publishEventCmd.Flags().StringVar(&eventAction, "action", events.ActionProjectUpdated, "Action carried by projects.changed")
	publishEventCmd.Flags().StringVar(&eventUserID, "user", "", "User id carried by user.deleted")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
