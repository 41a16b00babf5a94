package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/canvasinfo/canvasinfo/internal/domain/roster"
	"github.com/canvasinfo/canvasinfo/internal/domain/shared"
	"github.com/canvasinfo/canvasinfo/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// apiPrefix is appended to the configured base URL.
const apiPrefix = "/api/v1"

// ClientConfig contains configuration for the Canvas API client.
type ClientConfig struct {
	// BaseURL is the Canvas instance, e.g. https://canvas.tue.nl
	BaseURL string

	// AccessToken is the user generated API token
	AccessToken string

	// Timeout is the HTTP request timeout
	Timeout time.Duration

	// PerPage is the page size requested for list endpoints
	PerPage int

	// GroupConcurrency bounds parallel group membership requests
	GroupConcurrency int

	// RateLimiterConfig for API rate limiting
	RateLimiterConfig RateLimiterConfig

	// Logger for structured logging
	Logger *logger.Logger

	// HTTPClient overrides the default client (tests)
	HTTPClient *http.Client
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL, accessToken string) ClientConfig {
	return ClientConfig{
		BaseURL:           baseURL,
		AccessToken:       accessToken,
		Timeout:           30 * time.Second,
		PerPage:           100,
		GroupConcurrency:  4,
		RateLimiterConfig: DefaultRateLimiterConfig(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Canvas LMS API client.
type Client struct {
	config      ClientConfig
	apiURL      *url.URL
	httpClient  *http.Client
	logger      *logger.Logger
	rateLimiter *RateLimiter
	mapper      *Mapper
}

var _ roster.CourseSource = (*Client)(nil)

// NewClient creates a new Canvas API client. It fails with a config error
// when the base URL cannot be parsed.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.PerPage <= 0 {
		config.PerPage = 100
	}
	if config.GroupConcurrency <= 0 {
		config.GroupConcurrency = 1
	}

	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(config.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, shared.WrapError("canvas", "NewClient", shared.ErrConfig,
			fmt.Sprintf("invalid base url %q", config.BaseURL), err)
	}
	base.Path += apiPrefix

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:      config,
		apiURL:      base,
		httpClient:  httpClient,
		logger:      config.Logger.With(logger.Component("canvas")),
		rateLimiter: NewRateLimiter(config.RateLimiterConfig),
		mapper:      NewMapper(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ACCOUNT OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Ping checks the base URL and the access token by loading the token owner.
// It returns the owner's display name.
func (c *Client) Ping(ctx context.Context) (string, error) {
	var user UserDTO
	if _, err := c.doRequest(ctx, "Ping", c.endpoint("/users/self", nil), &user); err != nil {
		return "", err
	}
	return user.Name, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Course loads a course by id.
func (c *Client) Course(ctx context.Context, id int64) (roster.Course, error) {
	var dto CourseDTO
	path := fmt.Sprintf("/courses/%d", id)
	if _, err := c.doRequest(ctx, "Course", c.endpoint(path, nil), &dto); err != nil {
		if errors.Is(err, errResourceNotFound) {
			return roster.Course{}, shared.ErrCourseNotFound
		}
		return roster.Course{}, err
	}
	return c.mapper.CourseFromDTO(&dto), nil
}

// Students lists every user with a student enrollment, in API order.
func (c *Client) Students(ctx context.Context, course roster.Course) ([]roster.RawStudent, error) {
	params := url.Values{}
	params.Add("enrollment_type[]", "student")

	users, err := getAll[UserDTO](ctx, c, "Students", fmt.Sprintf("/courses/%d/users", course.ID), params)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("fetched students", logger.CourseID(course.ID), logger.Int("count", len(users)))
	return c.mapper.StudentsFromDTOs(users), nil
}

// Enrollments maps user id to enrollment type for all enrollments of the
// course.
func (c *Client) Enrollments(ctx context.Context, course roster.Course) (map[int64]string, error) {
	enrollments, err := getAll[EnrollmentDTO](ctx, c, "Enrollments", fmt.Sprintf("/courses/%d/enrollments", course.ID), nil)
	if err != nil {
		return nil, err
	}
	return c.mapper.RolesFromDTOs(enrollments), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GROUP OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// GroupCategoryList returns the group sets of a course.
func (c *Client) GroupCategoryList(ctx context.Context, course roster.Course) ([]GroupCategoryDTO, error) {
	return getAll[GroupCategoryDTO](ctx, c, "GroupCategories", fmt.Sprintf("/courses/%d/group_categories", course.ID), nil)
}

// GroupCategories returns the names of the group sets of a course.
func (c *Client) GroupCategories(ctx context.Context, course roster.Course) ([]string, error) {
	categories, err := c.GroupCategoryList(ctx, course)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(categories))
	for i, gc := range categories {
		names[i] = gc.Name
	}
	return names, nil
}

// Groups returns all groups of a course.
func (c *Client) Groups(ctx context.Context, course roster.Course) ([]GroupDTO, error) {
	return getAll[GroupDTO](ctx, c, "Groups", fmt.Sprintf("/courses/%d/groups", course.ID), nil)
}

// GroupMemberships maps user id to the group the user is in. When category
// is set only groups of that group set are read; an unknown category yields
// no memberships. progress is called once per group, never concurrently.
func (c *Client) GroupMemberships(ctx context.Context, course roster.Course, category string, progress roster.ProgressFunc) (map[int64]roster.Membership, error) {
	groups, err := c.Groups(ctx, course)
	if err != nil {
		return nil, err
	}

	if category != "" {
		categories, err := c.GroupCategoryList(ctx, course)
		if err != nil {
			return nil, err
		}
		groups = filterByCategory(groups, categories, category)
		if groups == nil {
			c.logger.Warn("group category not found",
				logger.CourseID(course.ID), logger.String("category", category))
			return map[int64]roster.Membership{}, nil
		}
	}

	members := make([][]int64, len(groups))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.GroupConcurrency)
	for i, grp := range groups {
		g.Go(func() error {
			ids, err := c.groupUserIDs(gctx, grp.ID)
			if err != nil {
				return err
			}
			members[i] = ids

			mu.Lock()
			done++
			if progress != nil {
				progress(done, len(groups))
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge in group order so a user listed in two groups ends up in the
	// later one on every run.
	result := make(map[int64]roster.Membership)
	for i := range groups {
		m := c.mapper.MembershipFromDTO(&groups[i])
		for _, id := range members[i] {
			result[id] = m
		}
	}

	c.logger.Debug("fetched group memberships",
		logger.CourseID(course.ID), logger.Int("groups", len(groups)), logger.Int("members", len(result)))
	return result, nil
}

func (c *Client) groupUserIDs(ctx context.Context, groupID int64) ([]int64, error) {
	params := url.Values{}
	params.Add("filter_states[]", "accepted")

	memberships, err := getAll[GroupMembershipDTO](ctx, c, "GroupMemberships", fmt.Sprintf("/groups/%d/memberships", groupID), params)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(memberships))
	for i, m := range memberships {
		ids[i] = m.UserID
	}
	return ids, nil
}

// filterByCategory keeps the groups of the named group set. It returns nil
// when no group set has that name.
func filterByCategory(groups []GroupDTO, categories []GroupCategoryDTO, name string) []GroupDTO {
	var id int64
	found := false
	for _, gc := range categories {
		if gc.Name == name {
			id, found = gc.ID, true
		}
	}
	if !found {
		return nil
	}

	kept := make([]GroupDTO, 0, len(groups))
	for _, g := range groups {
		if g.GroupCategoryID == id {
			kept = append(kept, g)
		}
	}
	return kept
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// errResourceNotFound marks a 404 answered by Canvas itself, as opposed to a
// base URL that does not serve the API at all.
var errResourceNotFound = errors.New("resource not found")

// getAll follows Link rel="next" headers until the last page.
func getAll[T any](ctx context.Context, c *Client, op, path string, params url.Values) ([]T, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("per_page", strconv.Itoa(c.config.PerPage))

	var all []T
	next := c.endpoint(path, params)
	for next != "" {
		var page []T
		header, err := c.doRequest(ctx, op, next, &page)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)

		next = nextLink(header.Get("Link"))
		if next != "" && !c.sameHost(next) {
			return nil, shared.NewDomainError("canvas", op, shared.ErrInvalidFormat,
				fmt.Sprintf("pagination link leaves %s", c.apiURL.Host))
		}
	}
	return all, nil
}

// doRequest performs one rate limited GET request and decodes the JSON body
// into result.
func (c *Client) doRequest(ctx context.Context, op, fullURL string, result any) (http.Header, error) {
	if err := c.rateLimiter.Allow(ctx); err != nil {
		return nil, shared.WrapError("canvas", op, shared.ErrConnectivity, "rate limiter", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, shared.WrapError("canvas", op, shared.ErrConfig, "create request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.AccessToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(op, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("canvas api request",
		logger.Operation(op), logger.String("url", redact(fullURL)),
		logger.Int("status", resp.StatusCode), logger.Latency(time.Since(start)))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.WrapError("canvas", op, shared.ErrConnectivity, "read response", err)
	}

	if err := statusError(op, resp.StatusCode, body); err != nil {
		return nil, err
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return nil, shared.WrapError("canvas", op, shared.ErrInvalidFormat, "decode response", err)
		}
	}
	return resp.Header, nil
}

// statusError maps an HTTP status to a domain error; nil for 2xx.
func statusError(op string, status int, body []byte) error {
	switch {
	case status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return shared.ErrAccessTokenInvalid
	case status == http.StatusForbidden:
		return shared.WrapError("canvas", op, shared.ErrUnauthorized, "access denied", apiMessage(body))
	case status == http.StatusNotFound:
		var apiErr ErrorResponseDTO
		if json.Unmarshal(body, &apiErr) == nil && len(apiErr.Errors) > 0 {
			return shared.WrapError("canvas", op, shared.ErrNotFound, apiErr.Message(), errResourceNotFound)
		}
		return shared.ErrBaseURLInvalid
	default:
		return shared.WrapError("canvas", op, shared.ErrConnectivity,
			fmt.Sprintf("unexpected status %d", status), apiMessage(body))
	}
}

// transportError classifies a failed round trip. Hosts that cannot be
// resolved or refuse the connection are reported as an erroneous base URL.
func transportError(op string, err error) error {
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || (errors.As(err, &opErr) && opErr.Op == "dial") {
		return shared.WrapError("canvas", op, shared.ErrNotFound, shared.ErrBaseURLInvalid.Message, err)
	}
	return shared.WrapError("canvas", op, shared.ErrConnectivity, "request failed", err)
}

func apiMessage(body []byte) error {
	var apiErr ErrorResponseDTO
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message() != "" {
		return errors.New(apiErr.Message())
	}
	return nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	u := *c.apiURL
	u.Path += path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

func (c *Client) sameHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Host == c.apiURL.Host
}

// nextLink extracts the rel="next" target of an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			param = strings.TrimSpace(param)
			if param == `rel="next"` || param == "rel=next" {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}

// redact drops the query string, which may carry pagination bookmarks.
func redact(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
