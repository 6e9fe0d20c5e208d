package engage

// Medium DOM selectors
// These are isolated here because Medium changes their DOM frequently
// Update these when commenting or follow detection breaks

const (
	// Article body, used as the comment generator's input
	ArticleBody = `article`

	// Follow button, only observed, never clicked
	FollowButton = `button.follow`

	// Responses (comments) panel
	ResponsesButton = `button[aria-label="responses"]`
	ResponseEditor  = `div[role="textbox"][contenteditable="true"]`
	ResponseSubmit  = `button[data-testid="ResponseRespondButton"]`
)
