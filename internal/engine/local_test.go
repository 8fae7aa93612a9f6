// ABOUTME: Tests for the OpenAI-protocol token stream adapter
// ABOUTME: Verifies fragment conversion, thinking filtering, and end-of-stream classification

package engine

import (
	"context"
	"errors"
	"io"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torchlightlabs/fireside/internal/store"
)

// fakeChunkStream scripts upstream responses for the tokenStream adapter.
type fakeChunkStream struct {
	chunks []openai.ChatCompletionStreamResponse
	final  error
	closed bool
}

func (f *fakeChunkStream) Recv() (openai.ChatCompletionStreamResponse, error) {
	if len(f.chunks) == 0 {
		if f.final != nil {
			return openai.ChatCompletionStreamResponse{}, f.final
		}
		return openai.ChatCompletionStreamResponse{}, io.EOF
	}
	chunk := f.chunks[0]
	f.chunks = f.chunks[1:]
	return chunk, nil
}

func (f *fakeChunkStream) Close() error {
	f.closed = true
	return nil
}

func contentChunk(text string) openai.ChatCompletionStreamResponse {
	return openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{Delta: openai.ChatCompletionStreamChoiceDelta{Content: text}},
		},
	}
}

func thinkingChunk(text string) openai.ChatCompletionStreamResponse {
	return openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{Delta: openai.ChatCompletionStreamChoiceDelta{ReasoningContent: text}},
		},
	}
}

func lengthStopChunk() openai.ChatCompletionStreamResponse {
	return openai.ChatCompletionStreamResponse{
		Choices: []openai.ChatCompletionStreamChoice{
			{FinishReason: openai.FinishReasonLength},
		},
	}
}

func drain(t *testing.T, s Stream) ([]Fragment, error) {
	t.Helper()
	var fragments []Fragment
	for {
		frag, err := s.Recv()
		if err != nil {
			return fragments, err
		}
		fragments = append(fragments, frag)
	}
}

func TestTokenStream_Fragments(t *testing.T) {
	fake := &fakeChunkStream{chunks: []openai.ChatCompletionStreamResponse{
		contentChunk("Hi"),
		contentChunk(" there"),
		contentChunk("!"),
	}}
	s := &tokenStream{upstream: fake, thinking: true}

	fragments, err := drain(t, s)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, fragments, 3)
	assert.Equal(t, "Hi", fragments[0].Text)
	assert.Equal(t, " there", fragments[1].Text)
	assert.Equal(t, "!", fragments[2].Text)
}

func TestTokenStream_ThinkingFragments(t *testing.T) {
	fake := &fakeChunkStream{chunks: []openai.ChatCompletionStreamResponse{
		thinkingChunk("hmm"),
		contentChunk("answer"),
	}}
	s := &tokenStream{upstream: fake, thinking: true}

	fragments, err := drain(t, s)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, fragments, 2)
	assert.True(t, fragments[0].Thinking)
	assert.Equal(t, "hmm", fragments[0].Text)
	assert.False(t, fragments[1].Thinking)
}

func TestTokenStream_ThinkingDisabled(t *testing.T) {
	fake := &fakeChunkStream{chunks: []openai.ChatCompletionStreamResponse{
		thinkingChunk("hmm"),
		contentChunk("answer"),
	}}
	s := &tokenStream{upstream: fake, thinking: false}

	fragments, err := drain(t, s)
	assert.ErrorIs(t, err, io.EOF)
	require.Len(t, fragments, 1)
	assert.Equal(t, "answer", fragments[0].Text)
}

func TestTokenStream_NoOutput(t *testing.T) {
	fake := &fakeChunkStream{}
	s := &tokenStream{upstream: fake}

	fragments, err := drain(t, s)
	assert.Empty(t, fragments)
	assert.True(t, IsNoOutput(err), "expected no-output error, got %v", err)
}

func TestTokenStream_ThinkingOnlyIsNoOutput(t *testing.T) {
	// Reasoning without any answer content still counts as no output
	fake := &fakeChunkStream{chunks: []openai.ChatCompletionStreamResponse{
		thinkingChunk("hmm"),
	}}
	s := &tokenStream{upstream: fake, thinking: true}

	fragments, err := drain(t, s)
	require.Len(t, fragments, 1)
	assert.True(t, IsNoOutput(err))
}

func TestTokenStream_BudgetExceeded(t *testing.T) {
	fake := &fakeChunkStream{chunks: []openai.ChatCompletionStreamResponse{
		contentChunk("partial answ"),
		lengthStopChunk(),
	}}
	s := &tokenStream{upstream: fake}

	fragments, err := drain(t, s)
	require.Len(t, fragments, 1)
	assert.Equal(t, "partial answ", fragments[0].Text)
	assert.True(t, IsBudgetExceeded(err), "expected budget error, got %v", err)
}

func TestTokenStream_BudgetExceededWithoutContent(t *testing.T) {
	// finish_reason "length" with nothing said (the budget went entirely to
	// reasoning) is no output, not a valid budget stop
	fake := &fakeChunkStream{chunks: []openai.ChatCompletionStreamResponse{
		thinkingChunk("let me think about"),
		lengthStopChunk(),
	}}
	s := &tokenStream{upstream: fake, thinking: false}

	fragments, err := drain(t, s)
	assert.Empty(t, fragments)
	assert.True(t, IsNoOutput(err), "expected no-output error, got %v", err)
	assert.False(t, IsBudgetExceeded(err))
}

func TestTokenStream_TransportFailure(t *testing.T) {
	fake := &fakeChunkStream{
		chunks: []openai.ChatCompletionStreamResponse{contentChunk("Hi")},
		final:  errors.New("connection reset"),
	}
	s := &tokenStream{upstream: fake}

	fragments, err := drain(t, s)
	require.Len(t, fragments, 1)
	assert.True(t, IsUnavailable(err), "expected unavailable error, got %v", err)
}

func TestTokenStream_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeChunkStream{final: context.Canceled}
	s := &tokenStream{upstream: fake, ctx: ctx}

	_, err := drain(t, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTokenStream_CloseIdempotent(t *testing.T) {
	fake := &fakeChunkStream{}
	s := &tokenStream{upstream: fake}

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, fake.closed)
}

func TestConvertMessages(t *testing.T) {
	messages := []*store.Message{
		{Role: store.RoleUser, Content: "hello", Reasoning: ""},
		{Role: store.RoleAssistant, Content: "hi!", Reasoning: "greeting"},
		{Role: store.RoleUser, Content: "how are you?"},
	}

	converted := convertMessages(messages)
	require.Len(t, converted, 3)
	assert.Equal(t, openai.ChatMessageRoleUser, converted[0].Role)
	assert.Equal(t, openai.ChatMessageRoleAssistant, converted[1].Role)
	assert.Equal(t, "hi!", converted[1].Content)
	assert.Equal(t, openai.ChatMessageRoleUser, converted[2].Role)
}

func TestGenerationError_Kinds(t *testing.T) {
	unavailable := &GenerationError{Kind: KindUnavailable, Err: errors.New("refused")}
	assert.True(t, IsUnavailable(unavailable))
	assert.False(t, IsNoOutput(unavailable))
	assert.False(t, IsBudgetExceeded(unavailable))
	assert.Contains(t, unavailable.Error(), "backend unavailable")

	assert.False(t, IsUnavailable(errors.New("plain")))
	assert.False(t, IsUnavailable(nil))
}
