package engage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const responseEditorTimeout = 10 * time.Second

// Comment generates a comment from the article text and posts it.
func (d *Driver) Comment(ctx context.Context, page Page) (string, error) {
	if d.comments == nil {
		return "", errors.New("no comment generator configured")
	}

	text, err := page.Text(ctx, ArticleBody)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("article has no text")
	}

	comment, err := d.comments.Generate(ctx, text)
	if err != nil {
		return "", fmt.Errorf("failed to generate comment: %w", err)
	}

	if err := page.ClickSelector(ctx, ResponsesButton); err != nil {
		return "", err
	}
	if err := page.WaitVisible(ctx, ResponseEditor, responseEditorTimeout); err != nil {
		return "", fmt.Errorf("response editor did not appear: %w", err)
	}
	if err := page.Type(ctx, ResponseEditor, comment); err != nil {
		return "", err
	}
	if err := page.ClickSelector(ctx, ResponseSubmit); err != nil {
		return "", err
	}

	d.logger.Info("Comment posted", zap.Int("length", len(comment)))
	return comment, nil
}
