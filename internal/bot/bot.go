package bot

import (
	"errors"
	"fmt"
	"github.com/asaskevich/EventBus"
	botApi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/jobfeed/internal/events"
	log "github.com/sirupsen/logrus"
	"strings"
)

// ingestionTrigger starts a background cycle unless one is already running.
type ingestionTrigger interface {
	Trigger(modules []string) bool
}

type moduleRegistry interface {
	Modules() []string
}

type Options struct {
	ChatID       int64
	FailuresOnly bool
}

// Bot reports ingestion results to a single chat and accepts commands from it.
type Bot struct {
	api      apiInterface
	updates  *botApi.BotAPI
	bus      EventBus.Bus
	trigger  ingestionTrigger
	registry moduleRegistry
	options  Options
}

func NewBot(token string, bus EventBus.Bus, trigger ingestionTrigger, registry moduleRegistry, options Options) (*Bot, error) {

	api, err := botApi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	log.Infof("Authorized on account %s", api.Self.UserName)

	err = botApi.SetLogger(log.StandardLogger())
	if err != nil {
		return nil, err
	}

	b, err := newBot(api, bus, trigger, registry, options)
	if err != nil {
		return nil, err
	}
	b.updates = api
	return b, nil
}

func newBot(api apiInterface, bus EventBus.Bus, trigger ingestionTrigger, registry moduleRegistry, options Options) (*Bot, error) {

	if bus == nil {
		return nil, errors.New("bus is nil")
	}
	if trigger == nil {
		return nil, errors.New("trigger is nil")
	}
	if registry == nil {
		return nil, errors.New("registry is nil")
	}
	if options.ChatID == 0 {
		return nil, errors.New("chat id is not set")
	}

	b := &Bot{api: api, bus: bus, trigger: trigger, registry: registry, options: options}

	if err := bus.SubscribeAsync(events.IngestionCompletedTopic, b.onIngestionCompleted, true); err != nil {
		return nil, err
	}
	return b, nil
}

// Run blocks handling updates until Stop is called.
func (b *Bot) Run() {

	if b.updates == nil {
		return
	}

	updateConfig := botApi.NewUpdate(0)
	updateConfig.Timeout = 60

	for update := range b.updates.GetUpdatesChan(updateConfig) {
		if update.Message == nil || !update.Message.IsCommand() {
			continue
		}
		go b.handleCommand(update.Message.Chat.ID, update.Message.Command(), update.Message.CommandArguments())
	}
}

func (b *Bot) Stop() {
	if err := b.bus.Unsubscribe(events.IngestionCompletedTopic, b.onIngestionCompleted); err != nil {
		log.Warnf("failed to unsubscribe bot: %v", err)
	}
	b.bus.WaitAsync()
	if b.updates != nil {
		b.updates.StopReceivingUpdates()
	}
}

func (b *Bot) handleCommand(chatID int64, command string, args string) {

	if chatID != b.options.ChatID {
		log.Warnf("ignoring command %q from unknown chat %d", command, chatID)
		return
	}

	var text string

	switch command {
	case startCommandName:
		text = "Commands:\n/modules - list sources\n/ingest [module ...] - run ingestion, all sources by default"
	case modulesCommandName:
		text = "Sources: " + strings.Join(b.registry.Modules(), ", ")
	case ingestCommandName:
		modules := parseModules(args)
		switch {
		case !b.trigger.Trigger(modules):
			text = "Ingestion already running"
		case len(modules) == 0:
			text = "Ingestion started for all sources"
		default:
			text = fmt.Sprintf("Ingestion started for %s", strings.Join(modules, ", "))
		}
	default:
		text = "Unknown command"
	}

	_, _ = sendWithLogError(b.api, botApi.NewMessage(chatID, text))
}

func (b *Bot) onIngestionCompleted(event events.IngestionCompleted) {
	if b.options.FailuresOnly && len(event.Report.FailedScrapers) == 0 {
		return
	}
	msg := botApi.NewMessage(b.options.ChatID, formatReport(event.Modules, event.Report, event.Duration))
	msg.DisableWebPagePreview = true
	_, _ = sendWithLogError(b.api, msg)
}
