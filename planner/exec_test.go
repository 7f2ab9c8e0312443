package planner

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/objstore"
	"github.com/Thema-AI/web-index/partition"
	"github.com/Thema-AI/web-index/schema"
)

func newTestExecutor() (*Executor, *partition.Manager) {
	backend, err := objstore.NewLocal(GinkgoT().TempDir())
	Expect(err).NotTo(HaveOccurred())
	cfg := cmn.DefaultConfig("test-bucket")
	mgr, err := partition.NewManager(backend, cfg)
	Expect(err).NotTo(HaveOccurred())
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewExecutor(mgr, cfg, metrics), mgr
}

func mustKey(url string, ts time.Time) partition.Key {
	k, err := partition.KeyForAttempt(schema.StreamGet, url, ts)
	Expect(err).NotTo(HaveOccurred())
	return k
}

var _ = Describe("Executor", func() {
	var (
		exec *Executor
		mgr  *partition.Manager
		ctx  context.Context
	)

	BeforeEach(func() {
		exec, mgr = newTestExecutor()
		ctx = context.Background()
	})

	It("resolves a deterministic query to the inserted chain (S1/S2)", func() {
		ts := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)
		key := mustKey("http://example.com/", ts)
		rows := []schema.DataRow{
			{URL: "http://example.com/", RequestURL: "http://a/", StatusCode: 301, Headers: "{}",
				Timestamp: ts, IsFinal: false, RequestID: "req-1", FetcherCalibre: 50},
			{URL: "http://example.com/", RequestURL: "http://b/", StatusCode: 200, Headers: "{}", Data: []byte("ok"),
				Timestamp: ts.Add(100 * time.Millisecond), IsFinal: true, RequestID: "req-1", FetcherCalibre: 50},
		}
		_, err := mgr.AppendData(ctx, key, rows)
		Expect(err).NotTo(HaveOccurred())

		results := exec.Execute(ctx, []Query{{
			Kind: KindDeterministic, Stream: schema.StreamGet, URL: "http://example.com/",
			Timestamp: ts, RequestID: "req-1",
		}})
		Expect(results).To(HaveLen(1))
		Expect(results[0].Err).NotTo(HaveOccurred())
		Expect(results[0].Page).NotTo(BeNil())
		Expect(results[0].Page.Hops).To(HaveLen(2))
		Expect(results[0].Page.Hops[1].StatusCode).To(Equal(uint8(200)))
	})

	It("returns no-match for an attempt never inserted", func() {
		ts := time.Date(2024, 8, 15, 10, 0, 0, 0, time.UTC)
		results := exec.Execute(ctx, []Query{{
			Kind: KindDeterministic, Stream: schema.StreamGet, URL: "http://missing.example/",
			Timestamp: ts, RequestID: "nope",
		}})
		Expect(results[0].NoMatch).To(BeTrue())
	})

	It("picks the calibre-filtered latest attempt (S3)", func() {
		t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		t2 := t1.Add(24 * time.Hour)
		t3 := t1.Add(48 * time.Hour)
		for i, tc := range []struct {
			ts      time.Time
			calibre schema.Calibre
			rid     string
		}{{t1, 30, "r1"}, {t2, 70, "r2"}, {t3, 20, "r3"}} {
			key := mustKey("http://x/", tc.ts)
			_, err := mgr.AppendData(ctx, key, []schema.DataRow{{
				URL: "http://x/", RequestURL: "http://x/", StatusCode: 200, Headers: "{}",
				Timestamp: tc.ts, IsFinal: true, RequestID: tc.rid, FetcherCalibre: tc.calibre,
			}})
			Expect(err).NotTo(HaveOccurred(), "attempt %d", i)
		}

		c := schema.Calibre(50)
		notStrict := false
		results := exec.Execute(ctx, []Query{{
			Kind: KindSimple, Stream: schema.StreamGet, URL: "http://x/", Calibre: &c, CalibreStrict: &notStrict,
		}})
		Expect(results[0].Err).NotTo(HaveOccurred())
		Expect(results[0].Page.RequestID).To(Equal("r2"))

		results = exec.Execute(ctx, []Query{{Kind: KindSimple, Stream: schema.StreamGet, URL: "http://x/"}})
		Expect(results[0].Page.RequestID).To(Equal("r3"))
	})

	It("returns the nearest attempt within a time window (S4)", func() {
		base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
		for offset, rid := range map[time.Duration]string{0: "r9", time.Hour: "r10", 2 * time.Hour: "r11"} {
			ts := base.Add(offset)
			key := mustKey("http://y/", ts)
			_, err := mgr.AppendData(ctx, key, []schema.DataRow{{
				URL: "http://y/", RequestURL: "http://y/", StatusCode: 200, Headers: "{}",
				Timestamp: ts, IsFinal: true, RequestID: rid, FetcherCalibre: 10,
			}})
			Expect(err).NotTo(HaveOccurred())
		}

		results := exec.Execute(ctx, []Query{{
			Kind: KindTimeBounded, Stream: schema.StreamGet, URL: "http://y/",
			NotBefore: base.Add(30 * time.Minute), NotAfter: base.Add(90 * time.Minute),
			Target: base.Add(80 * time.Minute),
		}})
		Expect(results[0].Err).NotTo(HaveOccurred())
		Expect(results[0].Page.RequestID).To(Equal("r10"))
	})

	It("applies the per-kind calibre_strict default when a query omits it", func() {
		ts := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		key := mustKey("http://strict.example/", ts)
		_, err := mgr.AppendData(ctx, key, []schema.DataRow{{
			URL: "http://strict.example/", RequestURL: "http://strict.example/", StatusCode: 200, Headers: "{}",
			Timestamp: ts, IsFinal: true, RequestID: "rstrict", FetcherCalibre: 50,
		}})
		Expect(err).NotTo(HaveOccurred())

		c := schema.Calibre(40)
		// Simple defaults calibre_strict to false ("at least"), so a row
		// above the threshold still matches.
		results := exec.Execute(ctx, []Query{{
			Kind: KindSimple, Stream: schema.StreamGet, URL: "http://strict.example/", Calibre: &c,
		}})
		Expect(results[0].Err).NotTo(HaveOccurred())
		Expect(results[0].NoMatch).To(BeFalse())

		// Time-bounded defaults calibre_strict to true ("exactly"), so the
		// same row no longer matches a different threshold.
		results = exec.Execute(ctx, []Query{{
			Kind: KindTimeBounded, Stream: schema.StreamGet, URL: "http://strict.example/", Calibre: &c,
			NotBefore: ts.Add(-time.Hour), NotAfter: ts.Add(time.Hour), Target: ts,
		}})
		Expect(results[0].Err).NotTo(HaveOccurred())
		Expect(results[0].NoMatch).To(BeTrue())
	})

	It("reports presence without a full result", func() {
		ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		key := mustKey("http://present.example/", ts)
		_, err := mgr.AppendData(ctx, key, []schema.DataRow{{
			URL: "http://present.example/", RequestURL: "http://present.example/", StatusCode: 200, Headers: "{}",
			Timestamp: ts, IsFinal: true, RequestID: "rp", FetcherCalibre: 10,
		}})
		Expect(err).NotTo(HaveOccurred())

		results := exec.Execute(ctx, []Query{
			{Kind: KindPresence, PresenceOf: KindSimple, Stream: schema.StreamGet, URL: "http://present.example/"},
			{Kind: KindPresence, PresenceOf: KindSimple, Stream: schema.StreamGet, URL: "http://absent.example/"},
		})
		Expect(results[0].Present).To(BeTrue())
		Expect(results[1].Present).To(BeFalse())
	})

	It("rejects a malformed chain with two final hops", func() {
		ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		key := mustKey("http://bad.example/", ts)
		_, err := mgr.AppendData(ctx, key, []schema.DataRow{
			{URL: "http://bad.example/", RequestURL: "http://bad.example/", StatusCode: 200, Headers: "{}",
				Timestamp: ts, IsFinal: true, RequestID: "rbad", FetcherCalibre: 10},
			{URL: "http://bad.example/", RequestURL: "http://bad.example/", StatusCode: 200, Headers: "{}",
				Timestamp: ts.Add(time.Second), IsFinal: true, RequestID: "rbad", FetcherCalibre: 10},
		})
		Expect(err).NotTo(HaveOccurred())

		results := exec.Execute(ctx, []Query{{
			Kind: KindDeterministic, Stream: schema.StreamGet, URL: "http://bad.example/",
			Timestamp: ts, RequestID: "rbad",
		}})
		Expect(results[0].Err).To(HaveOccurred())
	})
})
