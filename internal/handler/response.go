// Package handler exposes story playback over HTTP.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/easeaico/project-iyagi/internal/playback"
	"github.com/easeaico/project-iyagi/internal/record"
)

// ChoiceView is one selectable choice of the current line.
type ChoiceView struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	TextKR string `json:"text_kr,omitempty"`
}

// StateResponse is returned by every story route.
type StateResponse struct {
	State   string              `json:"state"`
	Index   int                 `json:"index"`
	Total   int                 `json:"total"`
	Status  string              `json:"status"`
	Current *record.FieldRecord `json:"current,omitempty"`
	Choices []ChoiceView        `json:"choices,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func newStateResponse(snap playback.Snapshot) StateResponse {
	resp := StateResponse{
		State:   snap.State.String(),
		Index:   snap.Index,
		Total:   snap.Total,
		Status:  snap.Status,
		Current: snap.Current,
	}
	if snap.State == playback.AwaitingChoice && snap.Current != nil {
		for _, choice := range snap.Current.Choices() {
			resp.Choices = append(resp.Choices, ChoiceView{Number: choice.Number, Text: choice.Text, TextKR: choice.TextKR})
		}
	}
	return resp
}

func writeState(c *gin.Context, code int, snap playback.Snapshot, err error) {
	resp := newStateResponse(snap)
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(code, resp)
}

// statusFor maps playback errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errorsIs(err, playback.ErrEmptyPrompt, playback.ErrInvalidChoice):
		return http.StatusBadRequest
	case errorsIs(err, playback.ErrBusy, playback.ErrChoicePending, playback.ErrNotPlaying, playback.ErrNotGenerating):
		return http.StatusConflict
	case errorsIs(err, playback.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
