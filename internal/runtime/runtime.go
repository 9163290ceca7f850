// Package runtime assembles every component into the single long-running
// process spec.md describes: it opens the Store, the Secret Box, and the
// LLM Gate, builds each engine in dependency order, and wires the
// Conversation Core and Scheduler on top. Grounded on the teacher's
// cmd/agentd's main-wiring shape (config → store → dependent services →
// background loop → HTTP server), generalized here to Nexira's component
// graph.
package runtime

import (
	"context"
	"fmt"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"nexira/internal/actions"
	"nexira/internal/backup"
	"nexira/internal/clock"
	"nexira/internal/config"
	"nexira/internal/consolidation"
	"nexira/internal/conversation"
	"nexira/internal/curiosity"
	"nexira/internal/email"
	"nexira/internal/goals"
	"nexira/internal/httpapi"
	"nexira/internal/interests"
	"nexira/internal/llmgate"
	"nexira/internal/mcpserver"
	"nexira/internal/memory"
	"nexira/internal/objectstore"
	"nexira/internal/observability"
	"nexira/internal/personality"
	"nexira/internal/scheduler"
	"nexira/internal/secretbox"
	"nexira/internal/selfawareness"
	"nexira/internal/store"
)

// Runtime is the assembled process: every engine plus the Scheduler and
// HTTP handler it drives, held together just long enough to start and stop
// them as one unit.
type Runtime struct {
	cfg config.Config

	Store      *store.Store
	SecretBox  *secretbox.Box
	Gate       *llmgate.Gate
	Conversation *conversation.Engine
	Scheduler  *scheduler.Engine
	Handler    http.Handler

	// MCPServer is non-nil only when cfg.Actions.MCPServerEnabled is set;
	// cmd/nexirad runs it on stdio in its own goroutine when present.
	MCPServer *mcpsdk.Server

	kafkaPub *store.KafkaActivityPublisher
	redis    *redis.Client
}

// New constructs every component in dependency order and returns an
// assembled Runtime. The caller is responsible for calling Start to
// launch the Scheduler's background loop, and Close on shutdown.
func New(ctx context.Context, cfg config.Config) (*Runtime, error) {
	st, err := store.Open(ctx, cfg.Database.ConnectionString, cfg.Database.EmbeddingDims)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	box, err := secretbox.Open(cfg.SecretBox.KeyPath)
	if err != nil {
		log.Warn().Err(err).Msg("runtime: secret box degraded, secrets at rest will be stored in plaintext")
	}

	httpClient := observability.NewHTTPClient(nil)

	gate, err := llmgate.Open(cfg, httpClient)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open llm gate: %w", err)
	}

	clk := clock.Real{}

	personalityEn := personality.New(st, cfg.Personality.Speed)
	if err := personalityEn.Load(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("load personality: %w", err)
	}

	memoryEn := memory.New(st, gate, memory.Config{
		EpisodeEvery:     cfg.Memory.EpisodeThreshold,
		MinConfirmations: cfg.Memory.MinConfirmations,
	})

	curiosityEn := curiosity.New(st, gate, nil) // Searcher wired only when a collaborator supplies one (spec.md §4.6)

	interestsEn := interests.New(st)

	goalsEn := goals.New(st, gate, cfg.AIName)
	if err := goalsEn.SeedIfEmpty(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("seed goals: %w", err)
	}

	chSink, err := selfawareness.OpenClickHouseSink(ctx, selfawareness.ClickHouseSinkConfig{
		DSN: cfg.ClickHouse.DSN,
	})
	if err != nil {
		log.Warn().Err(err).Msg("runtime: clickhouse self-awareness sink unavailable, continuing without it")
	}
	awarenessEn := selfawareness.New(st, chSink)

	mailer := email.New(st, box, clk, email.Config{
		SMTPHost:     cfg.SMTPHost,
		SMTPPort:     cfg.SMTPPort,
		Username:     cfg.SMTPUser,
		Password:     cfg.SMTPPassword,
		Recipient:    cfg.EmailRecipient,
		DailyEnabled: cfg.DailyEmailEnabled,
		AIName:       cfg.AIName,
		UserName:     cfg.UserName,
	})

	actionsEn := actions.New(st, cfg.Actions, nil, nil, mailer, cfg.EmailRecipient)

	var mcpServer *mcpsdk.Server
	if cfg.Actions.MCPServerEnabled {
		mcpServer = mcpserver.New(actionsEn)
	}

	convEn := conversation.New(
		st, gate, clk, box,
		personalityEn, memoryEn, curiosityEn, interestsEn, goalsEn, awarenessEn,
		actionsEn,
		conversation.Config{UserName: cfg.UserName, EpisodeBudgetTokens: cfg.Memory.PromptBudgetChars / 4},
	)

	consolidationEn := consolidation.New(st, gate, clk, box, curiosityEn, goalsEn, personalityEn, consolidation.Config{
		CreativeJournalingEnabled:      cfg.Scheduler.CreativeJournaling,
		PhilosophicalJournalingEnabled: cfg.Scheduler.PhilosophicalJournal,
		PhilosophicalEveryRuns:         cfg.Scheduler.PhilosophicalEveryRuns,
		UserName:                       cfg.UserName,
		AIName:                         cfg.AIName,
	})

	var offsite backup.Offsiter
	if cfg.Backup.S3Bucket != "" {
		s3cfg := config.S3Config{
			Bucket: cfg.Backup.S3Bucket,
			Prefix: cfg.Backup.S3KeyPrefix,
		}
		s3store, err := objectstore.NewS3Store(ctx, s3cfg)
		if err != nil {
			log.Warn().Err(err).Msg("runtime: s3 offsite backup unavailable, backups will stay local-only")
		} else {
			offsite = s3store
		}
	}
	backupMgr := backup.New(cfg.Backup, cfg.Database.ConnectionString, "", offsite)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	schedulerEn := scheduler.New(clk, cfg.Scheduler, st, consolidationEn, goalsEn, curiosityEn, backupMgr, mailer, redisClient)

	var kafkaPub *store.KafkaActivityPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub = store.NewKafkaActivityPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		st.SetActivityPublisher(kafkaPub)
	}

	handler := httpapi.NewServer(httpapi.Deps{
		Store:         st,
		Conversation:  convEn,
		Personality:   personalityEn,
		Memory:        memoryEn,
		Curiosity:     curiosityEn,
		Interests:     interestsEn,
		Goals:         goalsEn,
		SelfAwareness: awarenessEn,
		Consolidation: consolidationEn,
		Backup:        backupMgr,
		Mailer:        mailer,
		AIName:        cfg.AIName,
	})

	return &Runtime{
		cfg:          cfg,
		Store:        st,
		SecretBox:    box,
		Gate:         gate,
		Conversation: convEn,
		Scheduler:    schedulerEn,
		Handler:      handler,
		MCPServer:    mcpServer,
		kafkaPub:     kafkaPub,
		redis:        redisClient,
	}, nil
}

// Start launches the Scheduler's background loop. It returns immediately;
// the loop runs until ctx is canceled or Close stops it.
func (rt *Runtime) Start(ctx context.Context) {
	rt.Scheduler.Start(ctx)
}

// Close stops the Scheduler and releases every held resource. Safe to call
// once during graceful shutdown.
func (rt *Runtime) Close() {
	if rt.Scheduler != nil {
		rt.Scheduler.Stop()
	}
	if rt.kafkaPub != nil {
		if err := rt.kafkaPub.Close(); err != nil {
			log.Warn().Err(err).Msg("runtime: close kafka publisher")
		}
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("runtime: close redis client")
		}
	}
	if rt.Store != nil {
		rt.Store.Close()
	}
}
