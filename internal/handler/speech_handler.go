package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/speechgate/internal/gateway"
	"github.com/hitoshi/speechgate/internal/middleware"
	"github.com/hitoshi/speechgate/internal/model"
	"github.com/hitoshi/speechgate/internal/speech"
)

// SpeechService は音声合成・音声認識に必要なインターフェース。
type SpeechService interface {
	Synthesize(ctx context.Context, req speech.SynthesizeRequest) (*speech.Synthesis, error)
	Recognize(ctx context.Context, req speech.RecognizeRequest) (*speech.Recognition, error)
}

// SpeechHandler は音声関連のHTTPハンドラー。
type SpeechHandler struct {
	speech  gateway.Capability[SpeechService]
	adapter *gateway.Adapter
}

// NewSpeechHandler はSpeechHandlerを生成する。
func NewSpeechHandler(svc gateway.Capability[SpeechService], adapter *gateway.Adapter) *SpeechHandler {
	return &SpeechHandler{speech: svc, adapter: adapter}
}

// Synthesize はテキストを音声に変換する。
// POST /api/speech/synthesize
func (h *SpeechHandler) Synthesize(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.speech.Get()
	if !ok {
		middleware.WriteErrorResponse(w, model.NewNotConfiguredError("Speech service"))
		return
	}

	var req speech.SynthesizeRequest
	if err := decodeJSONBody(w, r, maxJSONBody, &req); err != nil {
		middleware.WriteErrorResponse(w, model.NewValidationError(err.Error()))
		return
	}

	res := gateway.Invoke(r.Context(), h.adapter, gateway.Call[*speech.Synthesis]{
		Vendor:    "google",
		Operation: "synthesize",
		Validate:  req.Validate,
		Do: func(ctx context.Context) (*speech.Synthesis, error) {
			return svc.Synthesize(ctx, req)
		},
	})
	if !res.OK() {
		middleware.WriteErrorResponse(w, res.Err())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res.Value())
}

// Recognize は音声をテキストに変換する。
// POST /api/speech/recognize
func (h *SpeechHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.speech.Get()
	if !ok {
		middleware.WriteErrorResponse(w, model.NewNotConfiguredError("Speech service"))
		return
	}

	var req speech.RecognizeRequest
	if err := decodeJSONBody(w, r, maxAudioBody, &req); err != nil {
		middleware.WriteErrorResponse(w, model.NewValidationError(err.Error()))
		return
	}

	res := gateway.Invoke(r.Context(), h.adapter, gateway.Call[*speech.Recognition]{
		Vendor:    "google",
		Operation: "recognize",
		Validate:  req.Validate,
		Do: func(ctx context.Context) (*speech.Recognition, error) {
			return svc.Recognize(ctx, req)
		},
	})
	if !res.OK() {
		middleware.WriteErrorResponse(w, res.Err())
		return
	}

	middleware.WriteJSON(w, http.StatusOK, res.Value())
}
