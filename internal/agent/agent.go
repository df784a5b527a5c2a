// Package agent wires the conversation nodes into the travel workflow and
// drives user turns through it.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voyagent-dev/voyagent/internal/conversation"
	"github.com/voyagent-dev/voyagent/internal/llm"
	"github.com/voyagent-dev/voyagent/internal/tools"
	"github.com/voyagent-dev/voyagent/internal/tools/flights"
	"github.com/voyagent-dev/voyagent/internal/tools/weather"
	"github.com/voyagent-dev/voyagent/internal/workflow"
	"github.com/voyagent-dev/voyagent/pkg/observability"
	"github.com/voyagent-dev/voyagent/pkg/session"
)

// Node names, also the vocabulary of trajectories.
const (
	nodeReturningUserMiddleware = "returning_user_middleware"
	nodeUserIntentClassifier    = "user_intent_classifier"
	nodeExtractItineraryPrefs   = "extract_itinerary_preferences"
	nodeExtractFlightPrefs      = "extract_flight_preferences"
	nodeSearchFlight            = "search_flight"
	nodeGracefulExit            = "graceful_exit"
	nodeRouteToPlan             = "route_to_plan"
)

// TurnResult is what one user turn produces.
type TurnResult struct {
	// Response is the last assistant message generated this turn.
	Response string `json:"response"`

	// Thinking is the newline-joined, deduplicated reasoning surfaced by
	// nodes this turn.
	Thinking string `json:"thinking"`

	// Trajectory is the ordered list of node names visited.
	Trajectory []string `json:"trajectory"`
}

// Agent owns the compiled workflow and the capabilities its nodes call.
type Agent struct {
	provider llm.Provider
	flights  *flights.Client
	weather  *weather.Client
	registry *tools.Registry
	store    session.Store
	graph    *workflow.CompiledGraph
}

// Option configures an Agent.
type Option func(*Agent)

// WithStore persists conversation state per session.
func WithStore(store session.Store) Option {
	return func(a *Agent) { a.store = store }
}

// WithFlightsClient substitutes the flight search client.
func WithFlightsClient(c *flights.Client) Option {
	return func(a *Agent) { a.flights = c }
}

// WithWeatherClient substitutes the weather client.
func WithWeatherClient(c *weather.Client) Option {
	return func(a *Agent) { a.weather = c }
}

// New builds the agent and compiles its workflow graph.
func New(provider llm.Provider, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}

	a := &Agent{
		provider: provider,
		flights:  flights.NewClient(),
		weather:  weather.NewClient(),
		registry: tools.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := a.registerTools(); err != nil {
		return nil, err
	}

	graph, err := a.buildGraph()
	if err != nil {
		return nil, err
	}
	a.graph = graph
	return a, nil
}

func (a *Agent) registerTools() error {
	if err := a.registry.Register(tools.Tool{
		Name:        "search_flight",
		Description: "Search flights by origin, destination, and passenger count",
		Handler: func(ctx context.Context, args tools.Args) (any, error) {
			req := flights.SearchRequest{
				Origin:      args.String("origin"),
				Destination: args.String("destination"),
				Passengers:  args.Int("passengers"),
			}
			return a.flights.Search(ctx, req)
		},
	}); err != nil {
		return err
	}

	return a.registry.Register(tools.Tool{
		Name:        "get_weather_by_city",
		Description: "Get the current weather for a city by name",
		Handler: func(ctx context.Context, args tools.Args) (any, error) {
			return a.weather.ByCity(ctx, args.String("city"))
		},
	})
}

// Tools exposes the agent's tool registry.
func (a *Agent) Tools() *tools.Registry { return a.registry }

// buildGraph wires the fixed conversation topology.
func (a *Agent) buildGraph() (*workflow.CompiledGraph, error) {
	g := workflow.NewGraph()

	g.AddNode(nodeReturningUserMiddleware, a.returningUserMiddleware)
	g.AddNode(nodeUserIntentClassifier, a.classifyIntent)
	g.AddNode(nodeExtractItineraryPrefs, a.extractItineraryPreferences)
	g.AddNode(nodeExtractFlightPrefs, a.extractFlightPreferences)
	g.AddNode(nodeSearchFlight, a.searchFlight)
	g.AddNode(nodeGracefulExit, a.gracefulExit)
	g.AddNode(nodeRouteToPlan, a.routeToPlan)

	g.SetEntryPoint(nodeReturningUserMiddleware)

	g.AddConditionalEdges(nodeReturningUserMiddleware, routeAfterMiddleware, map[string]string{
		nodeUserIntentClassifier:  nodeUserIntentClassifier,
		nodeExtractFlightPrefs:    nodeExtractFlightPrefs,
		nodeExtractItineraryPrefs: nodeExtractItineraryPrefs,
	})

	g.AddConditionalEdges(nodeUserIntentClassifier, routeIntent, map[string]string{
		nodeExtractFlightPrefs:    nodeExtractFlightPrefs,
		nodeExtractItineraryPrefs: nodeExtractItineraryPrefs,
		nodeGracefulExit:          nodeGracefulExit,
	})

	g.AddEdge(nodeExtractItineraryPrefs, nodeRouteToPlan)
	g.AddEdge(nodeExtractFlightPrefs, nodeSearchFlight)
	g.AddEdge(nodeSearchFlight, workflow.End)
	g.AddEdge(nodeRouteToPlan, workflow.End)
	g.AddEdge(nodeGracefulExit, workflow.End)

	var opts []workflow.CompileOption
	if a.store != nil {
		opts = append(opts, workflow.WithStore(a.store))
	}
	return g.Compile(opts...)
}

// routeAfterMiddleware sends returning users with a settled intent straight
// to the matching extractor; everyone else is classified.
func routeAfterMiddleware(state *conversation.State) string {
	if state.IsReturningUser && state.Intent != conversation.IntentUnknown {
		switch state.Intent {
		case conversation.IntentFlightBooking:
			return nodeExtractFlightPrefs
		case conversation.IntentTravelPlanning:
			return nodeExtractItineraryPrefs
		}
	}
	return nodeUserIntentClassifier
}

// routeIntent dispatches on the classification outcome. The retry_count == 3
// branch is kept even though the fallback below it resolves to the same
// target; there is no retry loop, a failed classification exits the turn.
func routeIntent(state *conversation.State) string {
	if state.Intent != conversation.IntentUnknown && state.Confidence > confidenceThreshold {
		switch state.Intent {
		case conversation.IntentFlightBooking:
			return nodeExtractFlightPrefs
		case conversation.IntentTravelPlanning:
			return nodeExtractItineraryPrefs
		default:
			return nodeExtractItineraryPrefs
		}
	}

	if state.Intent == conversation.IntentUnknown && state.RetryCount == 3 {
		return nodeGracefulExit
	}
	return nodeGracefulExit
}

// runFlightSearch routes the search through the tool registry so tool
// metrics capture it.
func (a *Agent) runFlightSearch(ctx context.Context, prefs *conversation.FlightBookingPreferences) (*flights.Flight, error) {
	req, err := flights.BuildSearchRequest(prefs)
	if err != nil {
		return nil, err
	}

	result, err := a.registry.Execute(ctx, "search_flight", tools.Args{
		"origin":      req.Origin,
		"destination": req.Destination,
		"passengers":  req.Passengers,
	})
	if err != nil {
		return nil, err
	}

	flight, ok := result.(*flights.Flight)
	if !ok {
		return nil, fmt.Errorf("unexpected flight search result type %T", result)
	}
	return flight, nil
}

// Invoke drives one user message through the workflow and derives the reply,
// thinking text, and trajectory from the turn's step updates.
func (a *Agent) Invoke(ctx context.Context, userQuery, sessionID string) (*TurnResult, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	start := time.Now()
	input := &conversation.Update{
		Messages:  []conversation.Message{conversation.UserMessage(userQuery)},
		SessionID: &sessionID,
	}

	result, err := a.graph.Run(ctx, input, sessionID)
	if err != nil {
		observability.RecordTurn("error", time.Since(start))
		return nil, err
	}
	observability.RecordTurn("success", time.Since(start))

	return &TurnResult{
		Response:   lastAssistantThisTurn(result),
		Thinking:   collectThinking(result),
		Trajectory: result.Trajectory(),
	}, nil
}

// lastAssistantThisTurn returns the content of the last assistant message
// produced by this turn's steps, ignoring history from earlier turns.
func lastAssistantThisTurn(result *workflow.Result) string {
	last := ""
	for _, step := range result.Steps {
		if step.Update == nil {
			continue
		}
		for _, msg := range step.Update.Messages {
			if msg.Role == conversation.RoleAssistant {
				last = msg.Content
			}
		}
	}
	return last
}

// collectThinking gathers the reasoning surfaced by this turn's steps,
// deduplicated and newline-joined.
func collectThinking(result *workflow.Result) string {
	seen := make(map[string]struct{})
	for _, step := range result.Steps {
		if step.Update == nil || step.Update.Reasoning == nil {
			continue
		}
		if r := strings.TrimSpace(*step.Update.Reasoning); r != "" {
			seen[r] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return ""
	}

	parts := make([]string, 0, len(seen))
	for r := range seen {
		parts = append(parts, r)
	}
	sort.Strings(parts)
	return strings.Join(parts, "\n")
}
