package guard

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"social-connect/internal/shared/errors"
	storemodel "social-connect/internal/store/domain/model"

	"github.com/google/cel-go/cel"
)

// Operation is the kind of write being checked
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// PendingID stands in for a store-assigned id when checking AddDocument writes
const PendingID = "pending"

// Rule allows operations on paths matching Match. Conditions are CEL
// expressions over auth, request, resource, path and variables.
type Rule struct {
	Match string
	Allow map[Operation]string
}

// DefaultRules encode the ownership conventions of the app's collections
var DefaultRules = []Rule{
	{
		Match: "user/{userId}",
		Allow: map[Operation]string{
			OpCreate: `auth.uid == variables.userId`,
			OpUpdate: `auth.uid == variables.userId`,
		},
	},
	{
		Match: "user/{userId}/following/{targetId}",
		Allow: map[Operation]string{
			OpCreate: `auth.uid == variables.userId && variables.targetId != auth.uid`,
			OpDelete: `auth.uid == variables.userId`,
		},
	},
	{
		Match: "user/{userId}/followers/{followerId}",
		Allow: map[Operation]string{
			OpCreate: `auth.uid == variables.followerId || auth.uid == variables.userId`,
			OpDelete: `auth.uid == variables.followerId || auth.uid == variables.userId`,
		},
	},
	{
		Match: "posts/{postId}",
		Allow: map[Operation]string{
			OpCreate: `request.data.authorId == auth.uid && size(request.data.likerIds) == 0`,
			// anyone may add or remove exactly their own id from likerIds
			OpUpdate: `resource.data.authorId == auth.uid ||
				(request.keys.all(k, k == "likerIds") &&
				 (request.data.likerIds.filter(x, !(x in resource.data.likerIds)) +
				  resource.data.likerIds.filter(x, !(x in request.data.likerIds))).all(x, x == auth.uid))`,
			OpDelete: `resource.data.authorId == auth.uid`,
		},
	},
	{
		Match: "posts/{postId}/comments/{commentId}",
		Allow: map[Operation]string{
			OpCreate: `request.data.authorId == auth.uid && size(request.data.text) > 0`,
		},
	},
	{
		Match: "chats/{chatId}",
		Allow: map[Operation]string{
			OpCreate: `auth.uid in request.data.participantIds && size(request.data.participantIds) == 2`,
			OpUpdate: `auth.uid in resource.data.participantIds`,
		},
	},
	{
		// resource is the parent conversation
		Match: "chats/{chatId}/messages/{messageId}",
		Allow: map[Operation]string{
			OpCreate: `request.data.senderId == auth.uid && auth.uid in resource.data.participantIds`,
		},
	},
}

// Request describes a write about to be issued
type Request struct {
	Actor string
	Op    Operation
	Path  string
	// Fields is the write payload, transforms included
	Fields map[string]interface{}
	// Resource is the current document, or the parent for child creates
	Resource map[string]interface{}
}

type compiledRule struct {
	match    *regexp.Regexp
	programs map[Operation]cel.Program
}

// Guard evaluates writes against rules before they reach the store
type Guard struct {
	env   *cel.Env
	rules []*compiledRule
	now   func() time.Time
}

// New compiles rules, DefaultRules when none are given
func New(rules ...Rule) (*Guard, error) {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	env, err := cel.NewEnv(
		cel.Variable("auth", cel.DynType),
		cel.Variable("request", cel.DynType),
		cel.Variable("resource", cel.DynType),
		cel.Variable("path", cel.StringType),
		cel.Variable("variables", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	g := &Guard{env: env, now: time.Now}
	for _, rule := range rules {
		compiled, err := g.compile(rule)
		if err != nil {
			return nil, err
		}
		g.rules = append(g.rules, compiled)
	}
	return g, nil
}

// MustNew is New for package-level defaults
func MustNew() *Guard {
	g, err := New()
	if err != nil {
		panic(err)
	}
	return g
}

func (g *Guard) compile(rule Rule) (*compiledRule, error) {
	match, err := compileMatchPattern(rule.Match)
	if err != nil {
		return nil, err
	}
	out := &compiledRule{match: match, programs: make(map[Operation]cel.Program)}
	for op, expr := range rule.Allow {
		ast, issues := g.env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s %s: CEL compilation error: %w", rule.Match, op, issues.Err())
		}
		prg, err := g.env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s %s: failed to create CEL program: %w", rule.Match, op, err)
		}
		out.programs[op] = prg
	}
	return out, nil
}

// compileMatchPattern turns "posts/{postId}" into an anchored regex with named groups
func compileMatchPattern(pattern string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(pattern)
	quoted = regexp.MustCompile(`\\\{([A-Za-z]+)\\\}`).ReplaceAllString(quoted, `(?P<$1>[^/]+)`)
	re, err := regexp.Compile("^" + quoted + "$")
	if err != nil {
		return nil, fmt.Errorf("failed to compile match pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Check returns nil when some rule allows req and a Forbidden AuthError otherwise
func (g *Guard) Check(req Request) error {
	if req.Actor == "" {
		return errors.NotSignedIn()
	}
	path := strings.Trim(req.Path, "/")
	for _, rule := range g.rules {
		m := rule.match.FindStringSubmatch(path)
		if m == nil {
			continue
		}
		prg, ok := rule.programs[req.Op]
		if !ok {
			break
		}
		variables := make(map[string]string)
		for i, name := range rule.match.SubexpNames() {
			if i > 0 && name != "" {
				variables[name] = m[i]
			}
		}
		out, _, err := prg.Eval(g.activation(req, path, variables))
		if err == nil {
			if allowed, ok := out.Value().(bool); ok && allowed {
				return nil
			}
		}
		break
	}
	return errors.NewForbiddenError(fmt.Sprintf("%s on %s is not allowed", req.Op, path)).
		WithDetail("path", path).
		WithDetail("operation", string(req.Op))
}

func (g *Guard) activation(req Request, path string, variables map[string]string) map[string]interface{} {
	resource := storemodel.CloneData(req.Resource)
	if resource == nil {
		resource = map[string]interface{}{}
	}

	var base map[string]interface{}
	if req.Op == OpUpdate {
		base = req.Resource
	}
	data := map[string]interface{}{}
	if req.Op != OpDelete {
		data = storemodel.ApplyWrite(base, req.Fields, g.now())
	}

	keys := make([]interface{}, 0, len(req.Fields))
	names := make([]string, 0, len(req.Fields))
	for k := range req.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		keys = append(keys, k)
	}

	return map[string]interface{}{
		"auth":      map[string]interface{}{"uid": req.Actor},
		"request":   map[string]interface{}{"data": data, "keys": keys},
		"resource":  map[string]interface{}{"data": resource},
		"path":      path,
		"variables": variables,
	}
}
