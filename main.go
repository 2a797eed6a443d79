package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"ingrevia/internal/config"
	"ingrevia/internal/core"
	"ingrevia/internal/llm"
	"ingrevia/internal/logger"
	"ingrevia/internal/nodes"
	"ingrevia/internal/normalize"
	"ingrevia/internal/search"
	"ingrevia/internal/services"
	"ingrevia/internal/storage"
)

const helpText = `명령어: /profile 현재 조건 보기 · /find <이름> 카탈로그 검색 · /ingredients <제품명> 전성분 보기 · /metrics 호출 통계 · /reset 처음부터 · /quit 종료`

// app holds the wired components for the terminal loop
type app struct {
	processor       *core.Processor
	store           storage.SessionManager
	searchTool      tool.InvokableTool
	ingredientsTool tool.InvokableTool
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading .env file: %v\n", err)
	}

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	a, cleanup, err := newApp(ctx, cfg)
	if err != nil {
		if errors.Is(err, core.ErrDataLoad) {
			logger.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("Catalog could not be loaded")
		}
		logger.Fatal().Err(err).Msg("Failed to start")
	}
	defer cleanup()

	a.run(ctx, os.Stdin, uuid.NewString())
}

func newApp(ctx context.Context, cfg *config.Config) (*app, func(), error) {
	catalog, err := services.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, err
	}

	chatModel, err := llm.NewChatModel(ctx, llm.ProviderConfig{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	generator, err := llm.NewChatGenerator(ctx, chatModel, "")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create generator: %w", err)
	}
	caller := llm.NewResilient(generator, cfg.LLM.Timeout)

	searcher, err := newSearcher(cfg.Search)
	if err != nil {
		return nil, nil, err
	}

	parser, err := nodes.NewSlotParser(ctx, normalize.New(), caller)
	if err != nil {
		return nil, nil, err
	}
	merger, err := nodes.NewPreferenceMerger(ctx, caller, cfg.Session.HistoryWindow)
	if err != nil {
		return nil, nil, err
	}
	ranker := services.NewRanker(catalog, services.RankerOptions{
		TopN:              cfg.Ranker.TopN,
		HarmFilter:        cfg.Ranker.HarmFilter.Enabled,
		HarmThreshold:     cfg.Ranker.HarmFilter.Threshold,
		StarterCategories: cfg.StarterCategories(),
	})

	processor := core.NewProcessor(
		core.NewRouter(cfg.GuardPolicy()),
		parser,
		merger,
		nodes.NewIngredientSelector(caller),
		ranker,
		nodes.NewComposer(caller, searcher),
		normalize.IsResetRequest,
	)

	store, cleanup, err := newSessionStore(ctx, cfg.Session)
	if err != nil {
		return nil, nil, err
	}

	tools, err := nodes.CatalogTools(catalog)
	if err != nil {
		return nil, nil, err
	}
	byName, err := invokableTools(ctx, tools)
	if err != nil {
		return nil, nil, err
	}
	searchTool, ingredientsTool := byName[nodes.CatalogSearchToolName], byName[nodes.ProductIngredientsToolName]
	if searchTool == nil || ingredientsTool == nil {
		return nil, nil, fmt.Errorf("catalog tools incomplete: %d registered", len(byName))
	}

	logger.Info().
		Str("provider", cfg.LLM.Provider).
		Str("model", cfg.LLM.Model).
		Str("policy", string(cfg.GuardPolicy())).
		Str("session_backend", cfg.Session.Backend).
		Int("products", catalog.Len()).
		Msg("Recommendation assistant ready")

	return &app{
		processor:       processor,
		store:           store,
		searchTool:      searchTool,
		ingredientsTool: ingredientsTool,
	}, cleanup, nil
}

// invokableTools indexes tools by their declared name
func invokableTools(ctx context.Context, tools []tool.BaseTool) (map[string]tool.InvokableTool, error) {
	byName := make(map[string]tool.InvokableTool, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read tool info: %w", err)
		}
		if inv, ok := t.(tool.InvokableTool); ok {
			byName[info.Name] = inv
		}
	}
	return byName, nil
}

func newSearcher(cfg config.SearchConfig) (search.Searcher, error) {
	var inner search.Searcher = search.Noop{}
	if cfg.SnippetsFile != "" {
		if _, err := os.Stat(cfg.SnippetsFile); err == nil {
			static, err := search.LoadStatic(cfg.SnippetsFile)
			if err != nil {
				return nil, err
			}
			inner = static
		} else {
			logger.Warn().Str("path", cfg.SnippetsFile).Msg("Snippets file not found, explanations run without search context")
		}
	}
	return search.NewPreferred(inner, cfg.PreferredSites), nil
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig) (storage.SessionManager, func(), error) {
	if cfg.Backend == "redis" {
		store, err := storage.NewRedisSessionManager(ctx, cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
	return storage.NewMemorySessionManager(cfg.TTL), func() {}, nil
}

func (a *app) run(ctx context.Context, in io.Reader, sessionID string) {
	fmt.Println(core.Greeting)
	fmt.Println(helpText)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		sess, err := storage.LoadOrCreate(ctx, a.store, sessionID)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to load session")
			continue
		}

		switch {
		case line == "/quit" || line == "/exit":
			return
		case line == "/help":
			fmt.Println(helpText)
			continue
		case line == "/profile":
			stats := storage.GetSessionStats(sess)
			fmt.Printf("조건: %s\n대화: %d개 메시지 (%d턴)\n", sess.Profile.String(), stats.MessageCount, stats.UserTurns)
			continue
		case line == "/metrics":
			if err := printMetrics(os.Stdout, prometheus.DefaultGatherer); err != nil {
				logger.Error().Err(err).Msg("Failed to gather metrics")
			}
			continue
		case line == "/reset":
			line = "처음부터"
		case strings.HasPrefix(line, "/find "):
			a.printMatches(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/find ")))
			continue
		case strings.HasPrefix(line, "/ingredients "):
			a.printIngredients(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/ingredients ")))
			continue
		}

		result, err := a.processor.Handle(ctx, sess, line)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to process message")
			continue
		}
		fmt.Println(result.Reply)

		if err := a.store.SaveSession(ctx, sess); err != nil {
			logger.Error().Err(err).Str("session_id", sess.ID).Msg("Failed to save session")
		}
	}
}

func (a *app) printMatches(ctx context.Context, query string) {
	res, err := nodes.RunCatalogSearch(ctx, a.searchTool, nodes.CatalogQuery{Query: query})
	if err != nil {
		logger.Error().Err(err).Msg("Catalog search failed")
		return
	}
	if res.Total == 0 {
		fmt.Println("검색 결과가 없습니다.")
		return
	}
	for _, p := range res.Products {
		fmt.Printf("- [%s] %s %s (유해성 %.1f)\n", p.Category, p.Brand, p.Name, p.HarmScore)
	}
	if res.Total > len(res.Products) {
		fmt.Printf("... 외 %d개\n", res.Total-len(res.Products))
	}
}

func (a *app) printIngredients(ctx context.Context, name string) {
	match, err := nodes.RunProductIngredients(ctx, a.ingredientsTool, name)
	if err != nil {
		fmt.Println("제품을 찾지 못했습니다.")
		return
	}
	fmt.Printf("%s %s\n전성분: %s\n", match.Brand, match.Name, strings.Join(match.Ingredients, ", "))
}

// printMetrics writes the model and search call counters
func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	stats, err := llm.CallStats(g)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Fprintln(w, "아직 기록된 호출이 없습니다.")
		return nil
	}
	for _, st := range stats {
		fmt.Fprintf(w, "%s{call=%q,result=%q} %g\n", st.Metric, st.Call, st.Result, st.Count)
	}
	return nil
}
