package mircrew

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// LikeOutcome is the result of one like detection strategy
type LikeOutcome int

const (
	// LikeNotApplicable means the strategy found nothing to act on
	LikeNotApplicable LikeOutcome = iota
	// LikePerformed means the like request was sent
	LikePerformed
)

func (o LikeOutcome) String() string {
	if o == LikePerformed {
		return "performed"
	}
	return "not applicable"
}

// Requester is the subset of Transport a like strategy may use
type Requester interface {
	Get(ctx context.Context, path string, params url.Values) (*Response, error)
	Post(ctx context.Context, path string, form url.Values) (*Response, error)
}

// LikePage is the loaded topic page a strategy inspects
type LikePage struct {
	TopicID string
	Doc     *goquery.Document
}

// LikeStrategy detects and triggers one kind of like affordance. Returning an
// error stops the magnet flow; LikeNotApplicable hands over to the next strategy.
type LikeStrategy interface {
	Name() string
	Like(ctx context.Context, req Requester, page *LikePage) (LikeOutcome, error)
}

// DefaultLikeEndpoints are the request templates tried when only a post id is known
var DefaultLikeEndpoints = []string{
	"viewtopic.php?t={topic}&p={post}&thanks={post}",
	"app.php/thanks/{post}",
	"app.php/like/{post}",
}

// DefaultLikeStrategies returns the detection chain in order of preference
func DefaultLikeStrategies(endpoints []string) []LikeStrategy {
	if len(endpoints) == 0 {
		endpoints = DefaultLikeEndpoints
	}
	return []LikeStrategy{
		FormLikeStrategy{},
		ThanksLinkStrategy{},
		LinkLikeStrategy{},
		ButtonLikeStrategy{Endpoints: endpoints},
		EndpointLikeStrategy{Endpoints: endpoints},
	}
}

var (
	likeWordPattern  = regexp.MustCompile(`(?i)(?:^|[^a-z])(?:likes?|thanks?|rate|rating|grazie)(?:[^a-z]|$)`)
	likeHrefPattern  = regexp.MustCompile(`(?i)[?&](?:thanks|like|rate)=|mode=(?:thanks|like)|/(?:thanks|like)/`)
	removeLikeMarker = regexp.MustCompile(`(?i)[?&]r(?:thanks|like)=|unlike`)
	postRefPattern   = regexp.MustCompile(`(?i)(?:^|[^a-z])p(?:ost)?[_-]?(\d+)`)
)

// runLikeChain applies strategies in order until one performs the like.
// It returns the name of that strategy, or "" when none applied.
func runLikeChain(ctx context.Context, strategies []LikeStrategy, req Requester, page *LikePage, logger zerolog.Logger) (string, error) {
	for _, strategy := range strategies {
		outcome, err := strategy.Like(ctx, req, page)
		if err != nil {
			return "", err
		}

		logger.Debug().
			Str("strategy", strategy.Name()).
			Str("topic_id", page.TopicID).
			Stringer("outcome", outcome).
			Msg("Like strategy evaluated")

		if outcome == LikePerformed {
			return strategy.Name(), nil
		}
	}
	return "", nil
}

// FormLikeStrategy submits a form whose action, id, class or name mentions a like action
type FormLikeStrategy struct{}

func (FormLikeStrategy) Name() string { return "form" }

func (FormLikeStrategy) Like(ctx context.Context, req Requester, page *LikePage) (LikeOutcome, error) {
	form := page.Doc.Find("form").FilterFunction(func(_ int, s *goquery.Selection) bool {
		action, _ := s.Attr("action")
		if removeLikeMarker.MatchString(action) {
			return false
		}
		for _, attr := range []string{"action", "id", "class", "name"} {
			if value, ok := s.Attr(attr); ok && likeWordPattern.MatchString(value) {
				return true
			}
		}
		return false
	}).First()
	if form.Length() == 0 {
		return LikeNotApplicable, nil
	}

	action := strings.TrimSpace(form.AttrOr("action", ""))
	if action == "" {
		action = "viewtopic.php?t=" + page.TopicID
	}
	fields := formFields(form)

	var err error
	if strings.EqualFold(form.AttrOr("method", "post"), "get") {
		_, err = req.Get(ctx, action, fields)
	} else {
		_, err = req.Post(ctx, action, fields)
	}
	if err != nil {
		return LikeNotApplicable, err
	}
	return LikePerformed, nil
}

// formFields collects what a browser would submit: named inputs, textareas,
// selects and the first named submit control.
func formFields(form *goquery.Selection) url.Values {
	fields := url.Values{}
	submitted := false

	form.Find("input[name], textarea[name], select[name], button[name]").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		switch goquery.NodeName(s) {
		case "textarea":
			fields.Add(name, s.Text())
			return
		case "select":
			option := s.Find("option[selected]").First()
			if option.Length() == 0 {
				option = s.Find("option").First()
			}
			fields.Add(name, option.AttrOr("value", strings.TrimSpace(option.Text())))
			return
		case "button":
			if !submitted && strings.ToLower(s.AttrOr("type", "submit")) == "submit" {
				fields.Add(name, s.AttrOr("value", ""))
				submitted = true
			}
			return
		}

		switch strings.ToLower(s.AttrOr("type", "text")) {
		case "checkbox", "radio":
			if _, checked := s.Attr("checked"); checked {
				fields.Add(name, s.AttrOr("value", "on"))
			}
		case "submit", "image":
			if !submitted {
				fields.Add(name, s.AttrOr("value", ""))
				submitted = true
			}
		case "file", "reset", "button":
		default:
			fields.Add(name, s.AttrOr("value", ""))
		}
	})

	return fields
}

// ThanksLinkStrategy follows the thanks link of the phpBB "thanks for posts"
// extension (a#lnk_thanks_post<N>). A remove-thanks link means the post was
// already thanked.
type ThanksLinkStrategy struct{}

func (ThanksLinkStrategy) Name() string { return "thanks-link" }

func (ThanksLinkStrategy) Like(ctx context.Context, req Requester, page *LikePage) (LikeOutcome, error) {
	link := page.Doc.Find(`a[id^="lnk_thanks_post"]`).First()
	href := strings.TrimSpace(link.AttrOr("href", ""))
	if href == "" || removeLikeMarker.MatchString(href) {
		return LikeNotApplicable, nil
	}
	if _, err := req.Get(ctx, href, nil); err != nil {
		return LikeNotApplicable, err
	}
	return LikePerformed, nil
}

// LinkLikeStrategy follows any anchor whose target is a like/thanks/rate action
type LinkLikeStrategy struct{}

func (LinkLikeStrategy) Name() string { return "link" }

func (LinkLikeStrategy) Like(ctx context.Context, req Requester, page *LikePage) (LikeOutcome, error) {
	var href string
	page.Doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		candidate := strings.TrimSpace(s.AttrOr("href", ""))
		if likeHrefPattern.MatchString(candidate) && !removeLikeMarker.MatchString(candidate) {
			href = candidate
			return false
		}
		return true
	})
	if href == "" {
		return LikeNotApplicable, nil
	}
	if _, err := req.Get(ctx, href, nil); err != nil {
		return LikeNotApplicable, err
	}
	return LikePerformed, nil
}

// ButtonLikeStrategy finds a like button carrying a post reference and tries
// the endpoint templates against that post.
type ButtonLikeStrategy struct {
	Endpoints []string
}

func (ButtonLikeStrategy) Name() string { return "button" }

func (b ButtonLikeStrategy) Like(ctx context.Context, req Requester, page *LikePage) (LikeOutcome, error) {
	var postID string
	page.Doc.Find(`button, a, input[type="button"], [role="button"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !looksLikeLike(s) {
			return true
		}
		postID = postReference(s)
		return postID == ""
	})
	if postID == "" {
		return LikeNotApplicable, nil
	}
	return tryEndpoints(ctx, req, b.Endpoints, page.TopicID, postID)
}

// EndpointLikeStrategy is the last resort: it takes the id of the first post
// on the page and tries the endpoint templates against it.
type EndpointLikeStrategy struct {
	Endpoints []string
}

func (EndpointLikeStrategy) Name() string { return "endpoint" }

func (e EndpointLikeStrategy) Like(ctx context.Context, req Requester, page *LikePage) (LikeOutcome, error) {
	post := page.Doc.Find(`div.post[id]`).First()
	postID := postReference(post)
	if postID == "" {
		return LikeNotApplicable, nil
	}
	return tryEndpoints(ctx, req, e.Endpoints, page.TopicID, postID)
}

func looksLikeLike(s *goquery.Selection) bool {
	if removeLikeMarker.MatchString(s.AttrOr("href", "")) {
		return false
	}
	for _, attr := range []string{"id", "class", "title", "name", "value", "aria-label"} {
		if likeWordPattern.MatchString(s.AttrOr(attr, "")) {
			return true
		}
	}
	return likeWordPattern.MatchString(strings.TrimSpace(s.Text()))
}

func postReference(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	for _, attr := range []string{"data-post-id", "data-post", "data-id"} {
		if value := strings.TrimSpace(s.AttrOr(attr, "")); isNumeric(value) {
			return value
		}
	}
	for _, attr := range []string{"id", "href"} {
		if match := postRefPattern.FindStringSubmatch(s.AttrOr(attr, "")); match != nil {
			return match[1]
		}
	}
	return ""
}

// tryEndpoints requests each template in turn. An HTTP error status moves on
// to the next template; a transport failure stops the flow.
func tryEndpoints(ctx context.Context, req Requester, templates []string, topicID, postID string) (LikeOutcome, error) {
	if len(templates) == 0 {
		templates = DefaultLikeEndpoints
	}
	replacer := strings.NewReplacer("{topic}", topicID, "{post}", postID)

	for _, template := range templates {
		_, err := req.Get(ctx, replacer.Replace(template), nil)
		if err == nil {
			return LikePerformed, nil
		}
		var e *Error
		if errors.As(err, &e) && e.StatusCode != 0 {
			continue
		}
		return LikeNotApplicable, err
	}
	return LikeNotApplicable, nil
}
