package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/pflag"

	"vidcite/internal/ai"
	"vidcite/internal/answer"
	"vidcite/internal/auth"
	"vidcite/internal/config"
	"vidcite/internal/reranker"
	"vidcite/internal/retriever"
	"vidcite/internal/store"
)

func main() {
	fs := pflag.NewFlagSet("vidcite-api", pflag.ExitOnError)

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	fs.Usage = cfg.Usage

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level '%s': %v", cfg.LogLevel, err)
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	logger.Info().Str("provider", cfg.Provider).Str("log_level", cfg.LogLevel).Bool("auth_enabled", cfg.Auth.Enabled).Msg("starting vidcite api")

	clientConfig, err := providerConfig(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	auth.Initialize(cfg.Auth.JwtSecret, cfg.Auth.Enabled)

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer st.Close()

	c, err := ai.NewClient(clientConfig)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	dim := c.Dim()
	logger.Info().Int("embedding_dim", dim).Str("embed_model", clientConfig.EmbedModel).Msg("AI client initialized")

	if err := st.Migrate(ctx, dim); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	var rr ai.Reranker
	switch {
	case cfg.RerankAPIKey != "":
		rr = ai.NewHTTPReranker(ai.RerankConfig{
			Endpoint: cfg.RerankEndpoint,
			APIKey:   cfg.RerankAPIKey,
			Model:    cfg.RerankModel,
		})
	case cfg.Provider == "stub":
		rr = ai.StubReranker{}
	default:
		// no rerank provider configured; pipeline keeps retrieval order
		rr = nil
	}

	ret := retriever.NewService(c, st, logger)
	pipeline := answer.NewPipeline(ret, reranker.NewService(rr, logger), c, logger)
	pipeline.Options.RetrieveLimit = cfg.RetrieveLimit
	pipeline.Options.SimilarityThreshold = cfg.SimilarityThreshold

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(r.Context()); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	mux.HandleFunc("/ask", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req answer.AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.CreatorID) == "" || strings.TrimSpace(req.Query) == "" {
			http.Error(w, "creator_id and query are required", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		start := time.Now()
		resp, err := pipeline.Ask(ctx, req)
		if err != nil {
			// only context cancellation reaches here
			if errors.Is(err, context.Canceled) {
				return
			}
			http.Error(w, "request timed out", http.StatusGatewayTimeout)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
		}
		hlog.FromRequest(r).Info().
			Str("creator_id", req.CreatorID).
			Int("citations", len(resp.Citations)).
			Float64("confidence", resp.Confidence).
			Dur("dur", time.Since(start)).
			Msg("answered")
	}))

	mux.HandleFunc("/search", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		creatorID := r.URL.Query().Get("creator_id")
		if q == "" || creatorID == "" {
			http.Error(w, "missing query parameter q or creator_id", http.StatusBadRequest)
			return
		}
		k := 5
		if v := r.URL.Query().Get("k"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				k = n
			}
		}
		threshold := cfg.SimilarityThreshold
		if v := r.URL.Query().Get("threshold"); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				threshold = f
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		res, stats, err := ret.Search(ctx, q, creatorID, k, threshold)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		for i := range res {
			if math.IsNaN(res[i].Score) || math.IsInf(res[i].Score, 0) {
				res[i].Score = 0
			}
		}
		w.Header().Set("Content-Type", "application/json")
		out := map[string]any{
			"results": res,
			"stats":   stats,
		}
		if res == nil {
			out["results"] = []any{}
		}
		if err := json.NewEncoder(w).Encode(out); err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("failed to encode search response")
		}
	}))

	mux.HandleFunc("/videos", auth.OptionalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		creatorID := r.URL.Query().Get("creator_id")
		if creatorID == "" {
			http.Error(w, "missing query parameter creator_id", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		videos, err := st.ListVideos(ctx, creatorID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if videos == nil {
			if _, err := w.Write([]byte("[]")); err != nil {
				http.Error(w, "Failed to write response", http.StatusInternalServerError)
			}
			return
		}
		if err := json.NewEncoder(w).Encode(videos); err != nil {
			http.Error(w, "Failed to encode videos", 500)
		}
	}))

	handler := hlog.NewHandler(logger)(
		hlog.CustomHeaderHandler("req_id", "X-Request-Id")(
			hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
				logger.Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
			})(withRequestID(mux)),
		),
	)

	address := fmt.Sprintf(":%d", cfg.Port)
	s := &http.Server{Addr: address, Handler: handler}
	logger.Info().Str("addr", s.Addr).Msg("api server listening")
	log.Fatal(s.ListenAndServe())
}

// withRequestID stamps requests missing an X-Request-Id so hlog can pick it
// up.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", uuid.NewString())
		}
		next.ServeHTTP(w, r)
	})
}

func providerConfig(cfg config.Specification) (*ai.ClientConfig, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			GenModel:   cfg.GenModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Provider:   ai.ProviderOpenAI,
		}, nil
	case "vertexai", "google":
		return &ai.ClientConfig{
			APIKey:     cfg.APIKey,
			EmbedModel: cfg.EmbedModel,
			GenModel:   cfg.GenModel,
			Dim:        cfg.Dim,
			ProjectID:  cfg.ProjectID,
			Location:   cfg.Location,
			Provider:   ai.ProviderVertexAI,
		}, nil
	case "stub":
		return &ai.ClientConfig{
			Dim:      cfg.Dim,
			Provider: ai.ProviderStub,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}
