package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noshhq/nosh/pkg/llm"
	"github.com/noshhq/nosh/pkg/models"
)

// fakeLLM returns a canned JSON-decoded value or an error.
type fakeLLM struct {
	result rawResult
	err    error
	calls  int
}

func (f *fakeLLM) CompleteJSON(_ context.Context, req llm.Request, out any) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	*(out.(*rawResult)) = f.result
	if req.Validate != nil {
		if err := req.Validate(out); err != nil {
			return &llm.Error{Kind: llm.KindSchemaMismatch, Err: err}
		}
	}
	return nil
}

func TestClassify_DecisionPolicy(t *testing.T) {
	tests := []struct {
		name string
		raw  rawResult
		want models.GateDecision
	}{
		{"no food signal stops", rawResult{FoodSignal: false, Confidence: 0.99, Language: "he"}, models.GateStop},
		{"low confidence clarifies", rawResult{FoodSignal: true, Confidence: 0.4, Language: "en"}, models.GateClarify},
		{"boundary confidence continues", rawResult{FoodSignal: true, Confidence: 0.6, Language: "en"}, models.GateContinue},
		{"high confidence continues", rawResult{FoodSignal: true, Confidence: 0.95, Language: "he"}, models.GateContinue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClassifier(&fakeLLM{result: tt.raw}, time.Second)
			got := c.Classify(context.Background(), "pizza", "en")
			assert.Equal(t, tt.want, got.Decision)
			assert.Equal(t, tt.raw.Language, got.Language)
		})
	}
}

func TestClassify_TimeoutFallsBackToContinue(t *testing.T) {
	f := &fakeLLM{err: &llm.Error{Kind: llm.KindTimeout, Err: errors.New("deadline")}}
	c := NewClassifier(f, time.Second)

	got := c.Classify(context.Background(), "פיצה בתל אביב", "en")

	assert.Equal(t, models.GateContinue, got.Decision)
	assert.Zero(t, got.Confidence)
	assert.Equal(t, "he", got.Language, "fallback language comes from script detection")
}
