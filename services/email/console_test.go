package emailsvc

import (
	"net/mail"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-fees/core"
	testutil "github.com/trezcool/masomo-fees/tests"
)

func newMessage(subject, body string) *core.EmailMessage {
	return &core.EmailMessage{
		To:      []mail.Address{{Name: "Jane", Address: "jane@example.com"}},
		Subject: subject,
		BodyStr: body,
	}
}

type recordingLogger struct {
	mu    sync.Mutex
	infos []string
}

func (l *recordingLogger) Debug(string, ...interface{}) {}
func (l *recordingLogger) Warn(string, ...interface{})  {}
func (l *recordingLogger) Error(string, ...interface{}) {}
func (l *recordingLogger) Fatal(string, ...interface{}) {}
func (l *recordingLogger) Info(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func TestConsoleService_send(t *testing.T) {
	conf := testutil.NewConfig()
	logger := new(recordingLogger)
	svc := consoleService{conf: conf, logger: logger, subjPrefix: "[" + conf.AppName + "] "}

	msg := newMessage("Receipt", "paid 25.00")
	require.True(t, svc.sendMessage(msg))

	require.Len(t, logger.infos, 1)
	out := logger.infos[0]
	from := conf.Email.DefaultFrom()
	assert.Contains(t, out, "From: "+from.String()+"\r\n")
	assert.Contains(t, out, "Subject: ["+conf.AppName+"] Receipt\r\n")
	assert.Contains(t, out, "To: \"Jane\" <jane@example.com>\r\n")
	assert.Contains(t, out, "paid 25.00")
	assert.False(t, strings.Contains(out, "text/html"), "no html part without a template")
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := testutil.NewConfig()
	svc := NewConsoleServiceMock(conf, testutil.NewLogger(conf))

	noRecipient := newMessage("Receipt", "paid")
	noRecipient.To = nil
	svc.SendMessages(newMessage("Receipt", "paid 25.00"), noRecipient)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "paid 25.00", sent[0].TextContent)
}
