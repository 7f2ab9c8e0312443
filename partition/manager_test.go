package partition

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Thema-AI/web-index/cmn"
	"github.com/Thema-AI/web-index/codec"
	"github.com/Thema-AI/web-index/objstore"
	"github.com/Thema-AI/web-index/schema"
)

var _ = Describe("Manager", func() {
	var (
		backend objstore.Backend
		mgr     *Manager
		ctx     context.Context
		key     Key
	)

	BeforeEach(func() {
		var err error
		backend, err = objstore.NewLocal(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())

		cfg := cmn.DefaultConfig("test-bucket")
		cfg.DefragMinParts = 2
		mgr, err = NewManager(backend, cfg)
		Expect(err).NotTo(HaveOccurred())

		ctx = context.Background()
		key = Key{Stream: schema.StreamGet, Year: 2024, Month: 8, Domain: "example.com"}
	})

	row := func(requestID string, ts time.Time) schema.DataRow {
		return schema.DataRow{
			URL: "https://example.com/x", RequestURL: "https://example.com/x",
			StatusCode: 200, Data: []byte("body"), Headers: "{}",
			Timestamp: ts, IsFinal: true, RequestID: requestID,
			FetcherName: "f", FetcherVersion: "1", FetcherCalibre: 50,
		}
	}

	It("returns zero rows for a partition with no files", func() {
		rows, err := mgr.ReadData(ctx, key, codec.DataPredicate{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(BeEmpty())
	})

	It("unions rows across every part file written", func() {
		ts := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
		_, err := mgr.AppendData(ctx, key, []schema.DataRow{row("req-1", ts)})
		Expect(err).NotTo(HaveOccurred())
		_, err = mgr.AppendData(ctx, key, []schema.DataRow{row("req-2", ts.Add(time.Hour))})
		Expect(err).NotTo(HaveOccurred())

		rows, err := mgr.ReadData(ctx, key, codec.DataPredicate{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
	})

	It("collapses part files into one canonical file on defrag", func() {
		ts := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
		_, err := mgr.AppendData(ctx, key, []schema.DataRow{row("req-1", ts)})
		Expect(err).NotTo(HaveOccurred())
		_, err = mgr.AppendData(ctx, key, []schema.DataRow{row("req-2", ts.Add(time.Hour))})
		Expect(err).NotTo(HaveOccurred())

		Expect(mgr.Defrag(ctx, key)).To(Succeed())

		canonical, parts, err := mgr.filesFor(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(canonical).To(Equal(key.CanonicalKey()))
		Expect(parts).To(BeEmpty())

		rows, err := mgr.ReadData(ctx, key, codec.DataPredicate{})
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(2))
	})

	It("leaves a partition below the defrag threshold untouched", func() {
		ts := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
		_, err := mgr.AppendData(ctx, key, []schema.DataRow{row("req-1", ts)})
		Expect(err).NotTo(HaveOccurred())

		Expect(mgr.Defrag(ctx, key)).To(Succeed())

		_, parts, err := mgr.filesFor(ctx, key)
		Expect(err).NotTo(HaveOccurred())
		Expect(parts).To(HaveLen(1))
	})
})
