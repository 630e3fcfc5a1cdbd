// Package signal talks to the peercall mailbox server over HTTP and listens
// to its websocket event stream.
package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkeye/peercall/internal/core"
	"github.com/dkeye/peercall/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// maxBody caps how much of a response is read; SDP blobs are a few KB.
const maxBody = 1 << 20

// HTTPTransport implements core.SignalingTransport and core.IncomingLister.
type HTTPTransport struct {
	baseURL    string
	token      string
	HTTPClient *http.Client
}

func NewHTTPTransport(baseURL, token string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// do sends one request and decodes a JSON response into out when non-nil.
// Non-2xx statuses become *core.SignalingError; 410 unwraps to core.ErrCallEnded.
func (t *HTTPTransport) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &core.SignalingError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return &core.SignalingError{Op: op, Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return &core.SignalingError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &core.SignalingError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &core.SignalingError{Op: op, Status: resp.StatusCode, Err: statusError(resp.StatusCode, raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &core.SignalingError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func statusError(status int, raw []byte) error {
	if status == http.StatusGone {
		return core.ErrCallEnded
	}
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
		return errors.New(eb.Error)
	}
	return errors.New(http.StatusText(status))
}

func callPath(id domain.CallID, suffix string) string {
	return "/api/calls/" + url.PathEscape(id.String()) + suffix
}

func (t *HTTPTransport) SendOffer(ctx context.Context, to domain.UserID, kind domain.MediaKind, offer webrtc.SessionDescription) (domain.CallID, error) {
	in := struct {
		To    domain.UserID             `json:"to"`
		Type  domain.MediaKind          `json:"type"`
		Offer webrtc.SessionDescription `json:"offer"`
	}{to, kind, offer}
	var out struct {
		CallID domain.CallID `json:"callId"`
	}
	if err := t.do(ctx, "send offer", http.MethodPost, "/api/calls/offer", in, &out); err != nil {
		return "", err
	}
	if out.CallID == "" {
		return "", &core.SignalingError{Op: "send offer", Status: http.StatusOK, Err: errors.New("server returned no callId")}
	}
	return out.CallID, nil
}

func (t *HTTPTransport) SendAnswer(ctx context.Context, id domain.CallID, answer webrtc.SessionDescription) error {
	in := struct {
		CallID domain.CallID             `json:"callId"`
		Answer webrtc.SessionDescription `json:"answer"`
	}{id, answer}
	return t.do(ctx, "send answer", http.MethodPost, "/api/calls/answer", in, nil)
}

func (t *HTTPTransport) PollAnswer(ctx context.Context, id domain.CallID) (*webrtc.SessionDescription, error) {
	var out struct {
		Answer *webrtc.SessionDescription `json:"answer"`
	}
	if err := t.do(ctx, "poll answer", http.MethodGet, callPath(id, "/answer"), nil, &out); err != nil {
		return nil, err
	}
	return out.Answer, nil
}

func (t *HTTPTransport) SendCandidate(ctx context.Context, id domain.CallID, candidate webrtc.ICECandidateInit) error {
	in := struct {
		CallID    domain.CallID           `json:"callId"`
		Candidate webrtc.ICECandidateInit `json:"candidate"`
	}{id, candidate}
	return t.do(ctx, "send candidate", http.MethodPost, "/api/calls/candidate", in, nil)
}

func (t *HTTPTransport) PollCandidates(ctx context.Context, id domain.CallID) ([]webrtc.ICECandidateInit, error) {
	var out struct {
		Candidates []webrtc.ICECandidateInit `json:"candidates"`
	}
	if err := t.do(ctx, "poll candidates", http.MethodGet, callPath(id, "/candidates"), nil, &out); err != nil {
		return nil, err
	}
	return out.Candidates, nil
}

func (t *HTTPTransport) EndCall(ctx context.Context, id domain.CallID) error {
	err := t.do(ctx, "end call", http.MethodPost, callPath(id, "/end"), nil, nil)
	if errors.Is(err, core.ErrCallEnded) {
		return nil
	}
	return err
}

func (t *HTTPTransport) IncomingCalls(ctx context.Context) ([]core.IncomingCall, error) {
	var out struct {
		Calls []core.IncomingCall `json:"calls"`
	}
	if err := t.do(ctx, "incoming", http.MethodGet, "/api/calls/incoming", nil, &out); err != nil {
		return nil, err
	}
	log.Debug().Str("module", "signal").Int("calls", len(out.Calls)).Msg("incoming polled")
	return out.Calls, nil
}

var (
	_ core.SignalingTransport = (*HTTPTransport)(nil)
	_ core.IncomingLister     = (*HTTPTransport)(nil)
)
