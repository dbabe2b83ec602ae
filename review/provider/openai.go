package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAI is an Oracle backed by the Responses API.
type OpenAI struct {
	client          *openai.Client
	model           string
	maxOutputTokens int64
	retry           RetryPolicy
}

func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		client:          &client,
		model:           model,
		maxOutputTokens: 2000,
		retry:           DefaultRetryPolicy,
	}
}

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	return o.complete(ctx, prompt, responses.ResponseTextConfigParam{})
}

// CompleteJSON asks for a strict json_schema answer.
func (o *OpenAI) CompleteJSON(ctx context.Context, prompt, name string, schema map[string]any) (string, error) {
	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        name,
			Schema:      schema,
			Strict:      openai.Bool(true),
			Description: openai.String(name + " JSON"),
			Type:        "json_schema",
		},
	}
	return o.complete(ctx, prompt, responses.ResponseTextConfigParam{Format: format})
}

func (o *OpenAI) complete(ctx context.Context, prompt string, text responses.ResponseTextConfigParam) (string, error) {
	if o.client == nil {
		return "", &OracleError{Provider: "openai", Err: errors.New("client is nil")}
	}
	if o.model == "" {
		return "", &OracleError{Provider: "openai", Err: errors.New("model is empty")}
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(o.maxOutputTokens),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(prompt, responses.EasyInputMessageRoleUser),
			},
		},
		Text: text,
	}

	resp, err := CallWithRetry(ctx, o.client, params, o.retry)
	if err != nil {
		return "", &OracleError{Provider: "openai", Err: err}
	}
	return strings.TrimSpace(resp.OutputText()), nil
}

func CallWithRetry(ctx context.Context, client *openai.Client, params responses.ResponseNewParams, policy RetryPolicy) (*responses.Response, error) {
	var resp *responses.Response
	err := policy.Do(ctx, func(ctx context.Context) error {
		r, err := client.Responses.New(ctx, params)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
