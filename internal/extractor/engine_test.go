package extractor_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cenkalti/backoff/v4"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ibeckermayer/xmedia/internal/dom"
	"github.com/ibeckermayer/xmedia/internal/extractor"
	"github.com/ibeckermayer/xmedia/internal/mediaurl"
	"github.com/ibeckermayer/xmedia/internal/strategy"
	"github.com/ibeckermayer/xmedia/internal/twitter"
	"github.com/ibeckermayer/xmedia/internal/twitter/twittertest"
	"github.com/ibeckermayer/xmedia/internal/types"
)

const thumb = "https://pbs.twimg.com/ext_tw_video_thumb/9/pu/img/T.jpg"

// fakeClient fails the post lookup but can still resolve videos
type fakeClient struct {
	video   *twitter.Media
	resolve int32
}

func (f *fakeClient) GetMediaForPost(context.Context, string) ([]twitter.Media, error) {
	return nil, fmt.Errorf("failed to fetch post: %w", twitter.ErrTransport)
}

func (f *fakeClient) ResolveVideo(context.Context, string, string) (*twitter.Media, error) {
	atomic.AddInt32(&f.resolve, 1)
	return f.video, nil
}

type fakePauser struct {
	calls chan struct{}
	err   error
}

func (p *fakePauser) PauseActiveVideo(context.Context) error {
	p.calls <- struct{}{}
	return p.err
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }

func (panicky) Run(context.Context, strategy.Input, *strategy.Accumulator) strategy.Result {
	panic("boom")
}

func postHTML(id, body string) string {
	return `<html><body><article data-testid="tweet">
<div data-testid="User-Name"><a role="link" href="/jack"><span>@jack</span></a></div>
<a href="/jack/status/` + id + `"><time datetime="2024-01-01T00:00:00.000Z">Jan 1</time></a>
` + body + `</article></body></html>`
}

func parse(html, location string) *dom.Page {
	page, err := dom.ParseString(html, location)
	Expect(err).NotTo(HaveOccurred())
	return page
}

func request(page *dom.Page) extractor.Request {
	return extractor.Request{Page: page, Options: types.DefaultOptions()}
}

func newClient(srv *twittertest.Server) *twitter.Client {
	return twitter.NewClient(nil,
		twitter.WithHost(srv.URL),
		twitter.WithGuestHost(srv.URL),
		twitter.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func expectIndexInBounds(out types.ExtractionOutcome) {
	if len(out.Items) > 0 {
		Expect(out.ActivatedIndex).To(BeNumerically(">=", 0))
		Expect(out.ActivatedIndex).To(BeNumerically("<", len(out.Items)))
	}
}

func expectNoDuplicates(items []types.MediaReference) {
	ids := map[string]bool{}
	media := map[string]bool{}
	urls := map[string]int{}
	for i, it := range items {
		Expect(ids[it.ID]).To(BeFalse(), "duplicate id %s", it.ID)
		ids[it.ID] = true
		if it.MediaID != "" {
			Expect(media[it.MediaID]).To(BeFalse(), "duplicate media id %s", it.MediaID)
			media[it.MediaID] = true
		}
		for _, u := range []string{it.SourceURL, it.PreviewURL} {
			k := mediaurl.Normalize(u)
			if k == "" {
				continue
			}
			if owner, ok := urls[k]; ok {
				Expect(owner).To(Equal(i), "duplicate url %s", k)
			}
			urls[k] = i
		}
	}
}

func diagnosticNames(out types.ExtractionOutcome) []string {
	var names []string
	for _, d := range out.Diagnostics {
		names = append(names, d.StrategyName)
	}
	return names
}

var _ = Describe("Engine", func() {
	var (
		ctx context.Context
		srv *twittertest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		srv = twittertest.NewServer()
		DeferCleanup(srv.Close)
	})

	Describe("the API path", func() {
		It("keeps API order and resolves the activated photo (scenario A)", func() {
			srv.SetTweet("100", twittertest.NewTweet("100", "jack",
				twittertest.Photo("1", "https://pbs.twimg.com/media/A.jpg", 800, 600),
				twittertest.Photo("2", "https://pbs.twimg.com/media/B.jpg", 800, 600),
				twittertest.Photo("3", "https://pbs.twimg.com/media/C.jpg", 800, 600),
			))
			page := parse(postHTML("100", `
<div data-testid="tweetPhoto"><img src="https://pbs.twimg.com/media/A.jpg"></div>
<div data-testid="tweetPhoto"><img data-xm-activated="true" src="https://pbs.twimg.com/media/B.jpg"></div>
<div data-testid="tweetPhoto"><img src="https://pbs.twimg.com/media/C.jpg"></div>`), "https://x.com/home")

			out := extractor.New(newClient(srv), nil).Extract(ctx, request(page))

			Expect(out.Succeeded).To(BeTrue())
			Expect(out.SourceKind).To(Equal(types.SourceAPI))
			Expect(out.PostID).To(Equal("100"))
			Expect(out.Context).NotTo(BeNil())
			Expect(out.Context.AuthorHandle).To(Equal("jack"))
			Expect(out.Items).To(HaveLen(3))
			Expect(out.ActivatedIndex).To(Equal(1))
			for i, it := range out.Items {
				Expect(it.Ordinal).To(Equal(i))
				Expect(it.MediaID).To(Equal(fmt.Sprint(i + 1)))
			}
			Expect(out.ExtractionID).NotTo(BeEmpty())
			Expect(diagnosticNames(out)).To(Equal([]string{extractor.StageAPI}))
			expectNoDuplicates(out.Items)
		})

		It("puts quoted media first", func() {
			quoted := twittertest.NewTweet("50", "alice",
				twittertest.Photo("q1", "https://pbs.twimg.com/media/Q1.jpg", 10, 10),
				twittertest.Photo("q2", "https://pbs.twimg.com/media/Q2.jpg", 10, 10),
			)
			srv.SetTweet("100", twittertest.NewTweet("100", "jack",
				twittertest.Photo("c1", "https://pbs.twimg.com/media/C1.jpg", 10, 10),
			).Quoting(quoted))
			page := parse(postHTML("100", `<img data-xm-activated="true" src="https://pbs.twimg.com/media/C1.jpg">`), "")

			out := extractor.New(newClient(srv), nil).Extract(ctx, request(page))

			Expect(out.Items).To(HaveLen(3))
			Expect(out.Items[0].MediaID).To(Equal("q1"))
			Expect(out.Items[1].MediaID).To(Equal("q2"))
			Expect(out.Items[2].MediaID).To(Equal("c1"))
			Expect(out.Items[0].OriginAuthor).To(Equal("alice"))
			Expect(out.Items[2].OriginAuthor).To(Equal("jack"))
			Expect(out.ActivatedIndex).To(Equal(2))
		})

		It("reuses the request cache for a repeated post (scenario E)", func() {
			srv.SetTweet("100", twittertest.NewTweet("100", "jack",
				twittertest.Photo("1", "https://pbs.twimg.com/media/A.jpg", 0, 0),
			))
			engine := extractor.New(newClient(srv), nil)
			page := parse(postHTML("100", `<img data-xm-activated="true" src="https://pbs.twimg.com/media/A.jpg">`), "")

			first := engine.Extract(ctx, request(page))
			second := engine.Extract(ctx, request(page))

			Expect(first.SourceKind).To(Equal(types.SourceAPI))
			Expect(second.SourceKind).To(Equal(types.SourceAPI))
			Expect(second.Items).To(Equal(first.Items))
			Expect(srv.Hits("100")).To(Equal(1))
		})

		It("falls through to the DOM when the API fails", func() {
			srv.SetStatus("100", 403)
			page := parse(postHTML("100", `<img data-xm-activated="true" src="https://pbs.twimg.com/media/A.jpg">`), "")

			out := extractor.New(newClient(srv), nil).Extract(ctx, request(page))

			Expect(out.Succeeded).To(BeTrue())
			Expect(out.SourceKind).To(Equal(types.SourceDOM))
			Expect(out.Diagnostics[0].StrategyName).To(Equal(extractor.StageAPI))
			Expect(out.Diagnostics[0].Succeeded).To(BeFalse())
			Expect(out.Diagnostics[0].Error).To(ContainSubstring("403"))
		})

		It("skips the API when video API fallback is disabled", func() {
			srv.SetTweet("100", twittertest.NewTweet("100", "jack",
				twittertest.Photo("1", "https://pbs.twimg.com/media/A.jpg", 800, 600),
			))
			page := parse(postHTML("100", `<img data-xm-activated="true" src="https://pbs.twimg.com/media/A.jpg">`), "")
			req := request(page)
			req.Options.FallbackToVideoAPI = false

			out := extractor.New(newClient(srv), nil).Extract(ctx, req)

			Expect(out.Succeeded).To(BeTrue())
			Expect(out.SourceKind).To(Equal(types.SourceDOM))
			Expect(srv.Hits("100")).To(Equal(0))
			Expect(diagnosticNames(out)).NotTo(ContainElement(extractor.StageAPI))
		})
	})

	Describe("the cache", func() {
		It("returns cached items unchanged on repeat activation", func() {
			srv.SetTweet("100", twittertest.NewTweet("100", "jack",
				twittertest.Photo("1", "https://pbs.twimg.com/media/A.jpg", 0, 0),
				twittertest.Video("2", thumb, []int{16, 9},
					twittertest.Variant{Bitrate: 832000, ContentType: "video/mp4", URL: "https://video.twimg.com/ext_tw_video/9/pu/vid/avc1/640x360/v.mp4"},
				),
			))
			cache := extractor.NewMemoryCache()
			engine := extractor.New(newClient(srv), cache)
			page := parse(postHTML("100", `<img data-xm-activated="true" src="https://pbs.twimg.com/media/A.jpg">`), "")

			first := engine.Extract(ctx, request(page))
			Expect(first.SourceKind).To(Equal(types.SourceAPI))

			cached, ok, err := cache.Get("100")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			second := engine.Extract(ctx, request(page))
			Expect(second.SourceKind).To(Equal(types.SourceCache))
			Expect(second.Items).To(Equal(cached))
			Expect(second.Items).To(Equal(first.Items))
			Expect(diagnosticNames(second)).To(Equal([]string{extractor.StageCache}))
			Expect(srv.Hits("100")).To(Equal(1))
		})

		It("caches DOM results by post id", func() {
			cache := extractor.NewMemoryCache()
			page := parse(postHTML("300", `<img data-xm-activated="true" src="https://pbs.twimg.com/media/D.jpg">`), "")

			out := extractor.New(nil, cache).Extract(ctx, request(page))

			Expect(out.SourceKind).To(Equal(types.SourceDOM))
			items, ok, _ := cache.Get("300")
			Expect(ok).To(BeTrue())
			Expect(items).To(Equal(out.Items))
		})
	})

	Describe("the DOM path", func() {
		It("emits one video for a resolved thumbnail (scenario B)", func() {
			client := &fakeClient{video: &twitter.Media{
				PostID:      "200",
				Kind:        types.KindVideo,
				DownloadURL: "https://video.twimg.com/ext_tw_video/9/pu/vid/avc1/1280x720/v.mp4",
				PreviewURL:  thumb,
				MediaID:     "9",
			}}
			page := parse(postHTML("200", `
<div data-testid="videoPlayer">
  <img data-xm-activated="true" alt="Embedded video" src="`+thumb+`">
  <video poster="`+thumb+`" src="blob:https://x.com/abc"></video>
</div>`), "")

			out := extractor.New(client, nil).Extract(ctx, request(page))

			Expect(out.SourceKind).To(Equal(types.SourceDOM))
			Expect(out.Items).To(HaveLen(1))
			Expect(out.Items[0].Kind).To(Equal(types.KindVideo))
			Expect(out.Items[0].SourceURL).To(HaveSuffix("v.mp4"))
			Expect(out.ActivatedIndex).To(Equal(0))
			Expect(diagnosticNames(out)).To(Equal([]string{
				extractor.StageAPI, strategy.NameImage, strategy.NameVideo,
				strategy.NameAttribute, strategy.NameBackground, extractor.StageMerge,
			}))
			Expect(out.Diagnostics[2].Skipped).To(BeTrue())
			expectNoDuplicates(out.Items)
		})

		It("drops invalid background URLs (scenario D)", func() {
			page := parse(postHTML("400", `
<div style="background-image: url(https://pbs.twimg.com/profile_banners/1/2)"></div>
<div data-xm-activated="true" style="background-image: url(https://pbs.twimg.com/media/E.jpg)"></div>`), "")

			out := extractor.New(nil, nil).Extract(ctx, request(page))

			Expect(out.Items).To(HaveLen(1))
			Expect(out.Items[0].PreviewURL).To(Equal("https://pbs.twimg.com/media/E.jpg"))
			Expect(out.ActivatedIndex).To(Equal(0))
		})

		It("fails cleanly when only invalid URLs exist", func() {
			page := parse(postHTML("400", `
<div data-xm-activated="true" style="background-image: url(https://pbs.twimg.com/profile_banners/1/2)"></div>`), "")

			out := extractor.New(nil, nil).Extract(ctx, request(page))

			Expect(out.Succeeded).To(BeFalse())
			Expect(out.SourceKind).To(Equal(types.SourceNone))
			Expect(out.Items).To(BeEmpty())
			Expect(out.ActivatedIndex).To(Equal(-1))
			Expect(out.ErrorMessage).To(Equal(extractor.ErrNoMedia.Error()))
			Expect(diagnosticNames(out)).To(ContainElement(extractor.StageMinimal))
		})

		It("records a panicking strategy and keeps going", func() {
			page := parse(postHTML("500", `<img data-xm-activated="true" src="https://pbs.twimg.com/media/F.jpg">`), "")
			engine := extractor.New(nil, nil, extractor.WithStrategies(append([]strategy.Strategy{panicky{}}, strategy.Default(nil)...)...))

			out := engine.Extract(ctx, request(page))

			Expect(out.Succeeded).To(BeTrue())
			Expect(out.Items).To(HaveLen(1))
			Expect(out.Diagnostics[0].StrategyName).To(Equal("panicky"))
			Expect(out.Diagnostics[0].Succeeded).To(BeFalse())
			Expect(out.Diagnostics[0].Error).To(ContainSubstring("boom"))
		})

		It("keeps the activated index within bounds", func() {
			page := parse(postHTML("600", `
<img src="https://pbs.twimg.com/media/G1.jpg">
<img src="https://pbs.twimg.com/media/G2.jpg">
<span data-xm-activated="true">caption</span>`), "")

			out := extractor.New(nil, nil).Extract(ctx, request(page))

			Expect(out.Items).To(HaveLen(2))
			expectIndexInBounds(out)
			expectNoDuplicates(out.Items)
		})
	})

	Describe("minimal extraction", func() {
		It("returns a bare blob image without a container (scenario C)", func() {
			page := parse(`<html><body><div><img data-xm-activated="true" src="blob:https://x.com/1234"></div></body></html>`, "")

			out := extractor.New(newClient(srv), extractor.NewMemoryCache()).Extract(ctx, request(page))

			Expect(out.Succeeded).To(BeTrue())
			Expect(out.SourceKind).To(Equal(types.SourceMinimal))
			Expect(out.Items).To(HaveLen(1))
			Expect(out.Items[0].Kind).To(Equal(types.KindImage))
			Expect(out.Items[0].SourceURL).To(Equal("blob:https://x.com/1234"))
			Expect(out.ActivatedIndex).To(Equal(0))
			Expect(diagnosticNames(out)).To(Equal([]string{extractor.StageMinimal}))
		})

		It("reads lazy sources only with the mutation observer enabled", func() {
			html := `<html><body><div data-xm-activated="true"><span data-src="https://pbs.twimg.com/media/L.jpg"></span></div></body></html>`
			engine := extractor.New(nil, nil)

			req := request(parse(html, ""))
			Expect(engine.Extract(ctx, req).Succeeded).To(BeFalse())

			req.Options.EnableMutationObserver = true
			out := engine.Extract(ctx, req)
			Expect(out.Succeeded).To(BeTrue())
			Expect(out.Items[0].SourceURL).To(Equal("https://pbs.twimg.com/media/L.jpg"))
		})
	})

	Describe("side effects", func() {
		It("pauses the active video once when preserving video state", func() {
			pauser := &fakePauser{calls: make(chan struct{}, 2), err: errors.New("no tab")}
			page := parse(postHTML("700", `<img data-xm-activated="true" src="https://pbs.twimg.com/media/H.jpg">`), "")

			out := extractor.New(nil, nil, extractor.WithPauser(pauser)).Extract(ctx, request(page))

			Expect(out.Succeeded).To(BeTrue())
			Eventually(pauser.calls).Should(Receive())
			Consistently(pauser.calls).ShouldNot(Receive())
		})

		It("does not pause when video state is not preserved", func() {
			pauser := &fakePauser{calls: make(chan struct{}, 1)}
			req := request(parse(postHTML("700", `<img data-xm-activated="true" src="https://pbs.twimg.com/media/H.jpg">`), ""))
			req.Options.PreserveVideoState = false

			extractor.New(nil, nil, extractor.WithPauser(pauser)).Extract(ctx, req)
			Consistently(pauser.calls).ShouldNot(Receive())
		})
	})

	It("reports a missing page as a failed outcome", func() {
		out := extractor.New(nil, nil).Extract(ctx, extractor.Request{})
		Expect(out.Succeeded).To(BeFalse())
		Expect(out.ErrorMessage).NotTo(BeEmpty())
		Expect(out.ActivatedIndex).To(Equal(-1))
	})

	It("treats a typed nil client as absent", func() {
		var client *twitter.Client
		page := parse(postHTML("800", `<img data-xm-activated="true" src="https://pbs.twimg.com/media/I.jpg">`), "")

		out := extractor.New(client, nil).Extract(ctx, request(page))
		Expect(out.SourceKind).To(Equal(types.SourceDOM))
	})
})
