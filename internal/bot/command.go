package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/maxaizer/jobfeed/internal/logger"
	log "github.com/sirupsen/logrus"
	"strings"
)

const (
	startCommandName   = "start"
	modulesCommandName = "modules"
	ingestCommandName  = "ingest"
)

type apiInterface interface {
	Send(chattable tgbotapi.Chattable) (tgbotapi.Message, error)
}

func sendWithLogError(api apiInterface, chattable tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := api.Send(chattable)
	if err != nil {
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeTgApi).
			Errorf("error occured while sending message: %v", err)
	}
	return msg, err
}

// parseModules splits command arguments on spaces and commas.
func parseModules(args string) []string {
	return strings.FieldsFunc(args, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
}
