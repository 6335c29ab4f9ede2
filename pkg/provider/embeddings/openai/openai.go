// Package openai embeds vocabulary through the OpenAI embeddings API, or any
// server speaking the same protocol.
//
// text-embedding-3 models can shorten their output, so [WithDimensions]
// keeps vectors aligned with the vocabulary table's vector column.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/audiora/audiora/pkg/provider/embeddings"
)

// DefaultModel is used when New is given no model.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

// maxInputs is the API's limit on inputs per request.
const maxInputs = 2048

// nativeDimensions lists the full output size of known models. Unknown
// models are assumed to match text-embedding-3-small.
var nativeDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

var _ embeddings.Provider = (*Provider)(nil)

// Provider is an [embeddings.Provider] over the OpenAI API.
type Provider struct {
	client     oai.Client
	model      string
	dimensions int
	batchSize  int
}

type settings struct {
	baseURL      string
	organization string
	timeout      time.Duration
	dimensions   int
	batchSize    int
}

// Option configures a [Provider].
type Option func(*settings)

// WithBaseURL points the client at a compatible server.
func WithBaseURL(url string) Option { return func(s *settings) { s.baseURL = url } }

// WithOrganization sends the OpenAI-Organization header.
func WithOrganization(org string) Option { return func(s *settings) { s.organization = org } }

// WithTimeout bounds each HTTP request.
func WithTimeout(d time.Duration) Option { return func(s *settings) { s.timeout = d } }

// WithDimensions requests vectors of n components from models that can
// shorten their output. Other models ignore it.
func WithDimensions(n int) Option { return func(s *settings) { s.dimensions = n } }

// WithBatchSize caps the inputs sent per request by EmbedBatch. Values
// outside (0, 2048] use 2048.
func WithBatchSize(n int) Option { return func(s *settings) { s.batchSize = n } }

// New returns a provider for model, or [DefaultModel] when model is empty.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai embeddings: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	var s settings
	for _, o := range opts {
		o(&s)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	if s.organization != "" {
		reqOpts = append(reqOpts, option.WithOrganization(s.organization))
	}
	if s.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: s.timeout}))
	}

	p := &Provider{client: oai.NewClient(reqOpts...), model: model, batchSize: maxInputs}
	if s.dimensions > 0 && shortenable(model) {
		p.dimensions = s.dimensions
	}
	if s.batchSize > 0 && s.batchSize < maxInputs {
		p.batchSize = s.batchSize
	}
	return p, nil
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.request(ctx, oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)}, 1)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements [embeddings.Provider]. Inputs beyond the batch size
// are split across several requests.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += p.batchSize {
		chunk := texts[start:min(start+p.batchSize, len(texts))]
		vecs, err := p.request(ctx, oai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: chunk}, len(chunk))
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int {
	if p.dimensions > 0 {
		return p.dimensions
	}
	if n, ok := nativeDimensions[strings.ToLower(p.model)]; ok {
		return n
	}
	return nativeDimensions[DefaultModel]
}

// ModelID implements [embeddings.Provider].
func (p *Provider) ModelID() string { return p.model }

// request sends one embeddings call expecting n vectors and returns them in
// input order.
func (p *Provider) request(ctx context.Context, input oai.EmbeddingNewParamsInputUnion, n int) ([][]float32, error) {
	params := oai.EmbeddingNewParams{Model: p.model, Input: input}
	if p.dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(p.dimensions))
	}
	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != n {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), n)
	}
	out := make([][]float32, n)
	for _, d := range resp.Data {
		i := int(d.Index)
		if i < 0 || i >= n || out[i] != nil {
			return nil, fmt.Errorf("openai embeddings: bad index %d in response", d.Index)
		}
		out[i] = make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			out[i][j] = float32(v)
		}
	}
	return out, nil
}

// shortenable reports whether model accepts the dimensions parameter.
func shortenable(model string) bool {
	return strings.HasPrefix(strings.ToLower(model), "text-embedding-3")
}
