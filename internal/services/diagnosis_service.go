package services

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/maxaizer/jobfeed/internal/entities"
	"github.com/maxaizer/jobfeed/internal/logger"
	"github.com/maxaizer/jobfeed/internal/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"strings"
	"time"
)

const maxSourceTextLength = 10000

type aiClient interface {
	GenerateResponse(ctx context.Context, request string) (string, error)
}

// Advisor explains source failures. A nil diagnosis with a nil error means the
// advisor has nothing to say.
type Advisor interface {
	Diagnose(ctx context.Context, module, errorTrace, sourceText string) (*entities.Diagnosis, error)
}

// NopAdvisor is used when diagnosis is switched off.
type NopAdvisor struct{}

func (NopAdvisor) Diagnose(context.Context, string, string, string) (*entities.Diagnosis, error) {
	return nil, nil
}

type DiagnosisService struct {
	aiClient aiClient
	timeout  time.Duration
	cache    *diagnosisCache
}

func NewDiagnosisService(aiClient aiClient, timeout, cacheTTL time.Duration) *DiagnosisService {
	return &DiagnosisService{
		aiClient: aiClient,
		timeout:  timeout,
		cache:    newDiagnosisCache(cacheTTL),
	}
}

func (d *DiagnosisService) Diagnose(ctx context.Context, module, errorTrace, sourceText string) (*entities.Diagnosis, error) {

	if cached, found := d.cache.get(module, errorTrace); found {
		metrics.DiagnosesCounter.WithLabelValues("cached").Inc()
		return cached, nil
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	response, err := d.aiClient.GenerateResponse(ctx, diagnosisRequest(module, errorTrace, sourceText))
	if err != nil {
		metrics.DiagnosesCounter.WithLabelValues("failed").Inc()
		log.WithField(logger.ErrorTypeField, logger.ErrorTypeAiApi).
			Errorf("failed to get diagnosis for %s: %v", module, err)
		return nil, errors.Wrap(err, "generate diagnosis")
	}

	diagnosis, err := parseDiagnosis(response)
	if err != nil {
		metrics.DiagnosesCounter.WithLabelValues("invalid").Inc()
		log.Warnf("unexpected diagnosis response for %s: %v", module, err)
		return nil, err
	}

	metrics.DiagnosesCounter.WithLabelValues("ok").Inc()
	d.cache.put(module, errorTrace, *diagnosis)
	return diagnosis, nil
}

func diagnosisRequest(module, errorTrace, sourceText string) string {
	if runes := []rune(sourceText); len(runes) > maxSourceTextLength {
		sourceText = string(runes[:maxSourceTextLength])
	}

	var b strings.Builder
	b.WriteString("Role: Expert Go developer maintaining job board scrapers (HTML selectors and JSON APIs).\n\n")
	fmt.Fprintf(&b, "Context: the source module '%s' failed during ingestion. "+
		"Malformed posting errors are intentional guards that fail fast when the page structure "+
		"changes or a selector returns an empty value.\n\n", module)
	fmt.Fprintf(&b, "Error Log:\n%s\n\n", errorTrace)
	fmt.Fprintf(&b, "Source Definition:\n%s\n\n", sourceText)
	b.WriteString("Task:\n" +
		"1. Identify the field or step that triggered the failure based on the error log.\n" +
		"2. Decide whether it is caused by a markup change, a timeout or a data format mismatch.\n" +
		"3. Suggest only the changed selector, URL or configuration block, not the whole definition.\n\n")
	b.WriteString("Return ONLY a JSON object:\n" +
		"{\"explanation\": \"short technical explanation\", " +
		"\"suggested_fix\": \"corrected fragment or null\"}")
	return b.String()
}

func parseDiagnosis(response string) (*entities.Diagnosis, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")

	var diagnosis entities.Diagnosis
	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &diagnosis); err != nil {
		return nil, errors.Wrap(err, "decode diagnosis")
	}
	if strings.TrimSpace(diagnosis.Explanation) == "" {
		return nil, errors.New("diagnosis without explanation")
	}
	if diagnosis.SuggestedFix != nil && strings.TrimSpace(*diagnosis.SuggestedFix) == "" {
		diagnosis.SuggestedFix = nil
	}
	return &diagnosis, nil
}
