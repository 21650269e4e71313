package gmail

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/twieland/mailpilot/internal/google"
	"github.com/twieland/mailpilot/internal/retry"
)

func TestTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", &googleapi.Error{Code: 429}, true},
		{"server error", &googleapi.Error{Code: 503}, true},
		{"not found", &googleapi.Error{Code: 404}, false},
		{"forbidden", &googleapi.Error{Code: 403}, false},
		{"auth failure", &google.AuthError{Account: "default", Reason: "expired"}, false},
		{"wrapped api error", &net.OpError{Op: "dial", Err: errors.New("refused")}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(tt.err))
		})
	}
}

func TestSendReplyRejectsInvalidRecipientBeforeNetwork(t *testing.T) {
	// svc is nil: any network attempt would panic, proving validation
	// happens first.
	c := &Client{
		account: "default",
		policy:  retry.DefaultPolicy(),
		timeout: time.Second,
		logger:  slog.Default(),
	}

	thread := Thread{ID: "t1", Messages: []Message{{Subject: "hi"}}}

	err := c.SendReply(context.Background(), thread, []string{"not-an-address"}, "body")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	err = c.SendReply(context.Background(), thread, nil, "body")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRecipient)
}

func TestBuildReply(t *testing.T) {
	last := Message{
		WireMessageID: "<m2@example.com>",
		References:    "<m1@example.com>",
	}

	raw := buildReply([]string{"alice@example.com"}, "Re: Plans", last, "Sounds good.")

	assert.Contains(t, raw, "To: alice@example.com\r\n")
	assert.Contains(t, raw, "Subject: Re: Plans\r\n")
	assert.Contains(t, raw, "In-Reply-To: <m2@example.com>\r\n")
	assert.Contains(t, raw, "References: <m1@example.com> <m2@example.com>\r\n")
	assert.Contains(t, raw, "\r\n\r\nSounds good.")
}

func TestBuildReplyEncodesNonASCIISubject(t *testing.T) {
	raw := buildReply([]string{"alice@example.com"}, "Re: Prüfung nötig", Message{}, "ok")

	var subject string
	for _, line := range strings.Split(raw, "\r\n") {
		if strings.HasPrefix(line, "Subject: ") {
			subject = strings.TrimPrefix(line, "Subject: ")
		}
	}
	require.NotEmpty(t, subject)

	for i := 0; i < len(subject); i++ {
		assert.Less(t, subject[i], byte(128), "header must be pure ASCII")
	}

	decoded, err := new(mime.WordDecoder).DecodeHeader(subject)
	require.NoError(t, err)
	assert.Equal(t, "Re: Prüfung nötig", decoded)
}

func TestBuildReplyWithoutThreadingHeaders(t *testing.T) {
	raw := buildReply([]string{"alice@example.com"}, "Re: Plans", Message{}, "ok")

	assert.NotContains(t, raw, "In-Reply-To")
	assert.NotContains(t, raw, "References")
}
