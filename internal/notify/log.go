package notify

import (
	"context"

	"go.uber.org/zap"
)

var _ Sender = (*LogSender)(nil)

// LogSender renders messages and writes them to the log instead of mailing
// them. It is used when no SMTP relay is configured.
type LogSender struct {
	renderer *Renderer
	logger   *zap.Logger
}

// NewLogSender returns a sender that logs through l.
func NewLogSender(l *zap.Logger) (*LogSender, error) {
	r, err := NewRenderer()
	if err != nil {
		return nil, err
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &LogSender{renderer: r, logger: l}, nil
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(msg); err != nil {
		return err
	}
	body, err := s.renderer.Render(msg.Template, msg.Data)
	if err != nil {
		return err
	}
	s.logger.Info("notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("template", msg.Template),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}
