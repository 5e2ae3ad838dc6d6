package admin

import (
	"context"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/teris-io/shortid"
	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"

	"github.com/cachecore/slabcache/internal/bufpool"
	"github.com/cachecore/slabcache/slab"
)

// Server wires an Allocator onto a fasthttp request handler. Grounded on
// the teacher repository's api/ HTTP-surface pattern of one struct owning
// the handler plus its collaborators, generalized from the teacher's
// REST-over-cluster-metadata surface to these three endpoints.
type Server struct {
	a    *slab.Allocator
	auth *Authenticator
	pool *bufpool.Pool
}

// NewServer constructs a Server. auth may be nil to disable authentication
// entirely (e.g. in a test harness bound to loopback).
func NewServer(a *slab.Allocator, auth *Authenticator) *Server {
	return &Server{
		a:    a,
		auth: auth,
		pool: bufpool.New(nil, "admin", 4096, 90*time.Second),
	}
}

// Handler returns the fasthttp.RequestHandler to pass to fasthttp.Server.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	reqID, _ := shortid.Generate()
	ctx.Response.Header.Set("X-Request-Id", reqID)

	switch string(ctx.Path()) {
	case "/stats":
		s.handleStats(ctx)
	case "/reassign":
		s.handleReassign(ctx)
	case "/limit":
		s.handleLimit(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) handleStats(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}
	snap := s.a.Snapshot()

	buf := s.pool.Alloc()
	defer s.pool.Free(buf)

	b, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(snap)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	buf = append(buf[:0], b...)

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.Write(buf)
}

func (s *Server) handleReassign(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(ctx) {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}

	src, err1 := strconv.Atoi(string(ctx.QueryArgs().Peek("src")))
	dst, err2 := strconv.Atoi(string(ctx.QueryArgs().Peek("dst")))
	n, err3 := strconv.Atoi(string(ctx.QueryArgs().Peek("n")))
	if err1 != nil || err2 != nil || err3 != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}

	if err := s.a.Reassign(src, dst, n); err != nil {
		ctx.SetStatusCode(fasthttp.StatusConflict)
		ctx.SetBodyString(err.Error())
		return
	}
	ctx.SetStatusCode(fasthttp.StatusAccepted)
}

func (s *Server) handleLimit(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(ctx) {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		return
	}

	newLimit, err := strconv.ParseInt(string(ctx.QueryArgs().Peek("bytes")), 10, 64)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}

	pages, err := s.a.ShrinkExpand(newLimit)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusConflict)
		ctx.SetBodyString(err.Error())
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	b, _ := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(struct {
		Pages int64 `json:"advisory_pages"`
	}{pages})
	ctx.Write(b)
}

func (s *Server) authorized(ctx *fasthttp.RequestCtx) bool {
	if s.auth == nil {
		return true
	}
	return s.auth.Authorize(ctx)
}

// ListenAndServe starts a fasthttp.Server bound to addr, serving the
// /stats, /reassign and /limit endpoints until ctx is canceled, at which
// point the server is given a chance to finish in-flight requests before
// returning.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &fasthttp.Server{Handler: s.Handler, Name: "slabcache-admin"}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown()
	})
	return g.Wait()
}
