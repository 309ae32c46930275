package domain

// EventKind identifies a domain event variant.
type EventKind string

const (
	EventKindUserCreated    EventKind = "user.created"
	EventKindFollowCreated  EventKind = "follow.created"
	EventKindArticleCreated EventKind = "article.created"
	EventKindCommentCreated EventKind = "comment.created"
)

// Event is an ephemeral fact raised by a collaborator service at its
// persistence commit point. Each variant carries enough context to resolve
// recipients and build a message without further lookups beyond what the
// directory provides.
type Event interface {
	Kind() EventKind
	// ActorID is the user who caused the event. The actor is never
	// notified about their own action.
	ActorID() string
}

// UserCreated is raised when a new account is registered. It triggers
// subscription bootstrap only, never recipient fan-out.
type UserCreated struct {
	UserID   string
	Username string
	Email    string
}

func (UserCreated) Kind() EventKind { return EventKindUserCreated }
func (e UserCreated) ActorID() string { return e.UserID }

// FollowCreated is raised when a follow relation is established.
type FollowCreated struct {
	FollowerID       string
	FollowerUsername string
	FollowingID      string
}

func (FollowCreated) Kind() EventKind { return EventKindFollowCreated }
func (e FollowCreated) ActorID() string { return e.FollowerID }

// ArticleCreated is raised when an author publishes a new article.
type ArticleCreated struct {
	ArticleID      string
	Title          string
	Slug           string
	AuthorID       string
	AuthorUsername string
}

func (ArticleCreated) Kind() EventKind { return EventKindArticleCreated }
func (e ArticleCreated) ActorID() string { return e.AuthorID }

// CommentCreated is raised when a user comments on an article.
type CommentCreated struct {
	CommentID         string
	ArticleID         string
	ArticleTitle      string
	ArticleSlug       string
	ArticleAuthorID   string
	CommenterID       string
	CommenterUsername string
}

func (CommentCreated) Kind() EventKind { return EventKindCommentCreated }
func (e CommentCreated) ActorID() string { return e.CommenterID }
