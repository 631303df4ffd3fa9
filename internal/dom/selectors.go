package dom

// X.com DOM selectors
// These are isolated here because X changes their DOM frequently
// Update these when extraction breaks

const (
	// Post containers
	TweetArticle = `article[data-testid="tweet"]`

	// Post content selectors
	TweetText      = `[data-testid="tweetText"]`
	TweetAuthor    = `[data-testid="User-Name"]`
	TweetTimestamp = `time`
	TweetLink      = `a[href*="/status/"]`
	TweetIDAttr    = `[data-tweet-id]`
	TweetPhoto     = `[data-testid="tweetPhoto"]`
	TweetMedia     = TweetPhoto + `, [data-testid="videoPlayer"]`
	QuoteIndicator = `[data-testid="quoteTweet"]`

	// Media elements
	MediaElements = `img, video`
	VideoPlayer   = `[data-testid="videoComponent"], [data-testid="videoPlayer"], a[aria-label*="video"], a[aria-label*="Video"]`

	// Author identity, in resolution order
	ProfileUserName = `[data-testid="UserName"] [dir="ltr"]`
	UserNameText    = TweetAuthor + ` span:not([aria-hidden="true"])`
	ArticleLinkText = `article [role="link"] span[dir="ltr"]`
	HeadingText     = `h2[role="heading"] span[dir="ltr"]`
	UserNameLink    = TweetAuthor + ` a[role="link"][href^="/"]`
)

// ContainerSelectors locate the post enclosing an element, most specific first
var ContainerSelectors = []string{
	TweetArticle,
	`[data-testid="tweet"]`,
	`[role="article"]`,
	`article`,
	`.tweet`,
}

// Attributes written by the live capture script
const (
	ActivatedAttr  = "data-xm-activated"
	BackgroundAttr = "data-xm-bg"
)

// Common wait conditions
const (
	WaitForTweets = TweetArticle
)
