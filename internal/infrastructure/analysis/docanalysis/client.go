// Package docanalysis is the HTTP client for the external document-analysis
// service. StartJob is fire-and-forget: the service answers with a job id and
// later publishes a completion notification on the events subject; the full
// results are fetched separately once that notification arrives.
package docanalysis

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/bank-document-pipeline/internal/core/domain"
	"github.com/kirillkom/bank-document-pipeline/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

// StartJob asks the service to analyze the document stored at documentRef and
// returns the service's correlation id.
func (c *Client) StartJob(ctx context.Context, documentRef string) (string, error) {
	request := map[string]any{
		"document_ref": documentRef,
		"feature_types": []string{
			"FORMS",
			"QUERIES",
		},
	}

	var response struct {
		JobID string `json:"job_id"`
	}

	call := func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/jobs", request, &response, "start job")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "analysis.start_job", call, classifyAnalysisError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded("start analysis job", err)
	}

	if response.JobID == "" {
		return "", domain.WrapError(domain.ErrTemporary, "start analysis job",
			fmt.Errorf("service returned empty job id"))
	}
	return response.JobID, nil
}

// FetchResults pulls the full analysis payload for a completed job.
func (c *Client) FetchResults(ctx context.Context, jobID string) (*domain.AnalysisResults, error) {
	var response struct {
		FullText     string            `json:"full_text"`
		Forms        map[string]string `json:"forms"`
		QueryAnswers map[string]string `json:"query_answers"`
		BlockCount   int               `json:"block_count"`
		PageCount    int               `json:"page_count"`
		Confidence   float64           `json:"confidence"`
	}

	path := "/v1/jobs/" + url.PathEscape(jobID) + "/results"
	call := func(ctx context.Context) error {
		return c.getJSON(ctx, path, &response, "fetch results")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "analysis.fetch_results", call, classifyAnalysisError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("fetch analysis results", err)
	}

	return &domain.AnalysisResults{
		FullText:     response.FullText,
		Forms:        response.Forms,
		QueryAnswers: response.QueryAnswers,
		BlockCount:   response.BlockCount,
		PageCount:    response.PageCount,
		Confidence:   response.Confidence,
	}, nil
}
