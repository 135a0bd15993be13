package settings_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kolzchut/ragbot/pkg/logger"
	"github.com/kolzchut/ragbot/pkg/settings"
	"github.com/kolzchut/ragbot/pkg/store/inmemory"
	testutils "github.com/kolzchut/ragbot/pkg/utils/test"
)

const testIndex = "saved_configurations"

func newTestStore(cachePeriod time.Duration) (*settings.Store, *testutils.CountingDriver) {
	driver := testutils.NewCountingDriver(inmemory.NewDriver())

	st, err := settings.New(context.Background(), driver, testIndex, cachePeriod, logger.Nop())
	Expect(err).NotTo(HaveOccurred())

	return st, driver
}

var _ = Describe("Store", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("Get", func() {
		Context("on an empty store", func() {
			It("writes and returns the seed record", func() {
				st, driver := newTestStore(10 * time.Minute)

				rec, err := st.Get(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(rec).To(Equal(settings.SeedRecord()))
				Expect(rec.Version).To(Equal(1))
				Expect(driver.Inserts()).To(Equal(1))
			})
		})

		Context("with a fresh cache", func() {
			It("does not consult the store again", func() {
				st, driver := newTestStore(10 * time.Minute)

				_, err := st.Get(ctx)
				Expect(err).NotTo(HaveOccurred())

				before := driver.Searches()
				for i := 0; i < 5; i++ {
					_, err := st.Get(ctx)
					Expect(err).NotTo(HaveOccurred())
				}
				Expect(driver.Searches()).To(Equal(before))
			})
		})

		Context("with an expired cache", func() {
			It("fetches the highest-version record from the store", func() {
				st, driver := newTestStore(0)

				_, err := st.Get(ctx)
				Expect(err).NotTo(HaveOccurred())

				before := driver.Searches()
				_, err = st.Get(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(driver.Searches()).To(Equal(before + 1))
			})
		})

		Context("when the store yields nothing despite being non-empty", func() {
			It("returns ErrUnavailable", func() {
				st, driver := newTestStore(0)

				_, err := st.Get(ctx)
				Expect(err).NotTo(HaveOccurred())

				driver.EmptySearch = true
				_, err = st.Get(ctx)
				Expect(err).To(MatchError(settings.ErrUnavailable))
			})
		})
	})

	Describe("Set", func() {
		It("bumps the version and inherits omitted fields", func() {
			st, _ := newTestStore(10 * time.Minute)

			model := "gpt-4.1"
			Expect(st.Set(ctx, settings.Partial{Model: &model})).To(Succeed())

			rec, err := st.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Version).To(Equal(2))
			Expect(rec.Model).To(Equal("gpt-4.1"))
			Expect(rec.NumOfPages).To(Equal(settings.SeedRecord().NumOfPages))
			Expect(rec.Temperature).To(Equal(settings.SeedRecord().Temperature))
			Expect(rec.Timestamp).NotTo(BeEmpty())
		})

		It("back-fills fields emptied by the caller from the seed", func() {
			st, _ := newTestStore(10 * time.Minute)

			empty := ""
			Expect(st.Set(ctx, settings.Partial{Model: &empty})).To(Succeed())

			rec, err := st.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Model).To(Equal(settings.SeedRecord().Model))
		})

		It("refreshes the cache immediately", func() {
			st, driver := newTestStore(10 * time.Minute)

			pages := "5"
			Expect(st.Set(ctx, settings.Partial{NumOfPages: &pages})).To(Succeed())

			before := driver.Searches()
			rec, err := st.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.NumOfPages).To(Equal("5"))
			Expect(driver.Searches()).To(Equal(before))
		})

		It("retains the full version history in the store", func() {
			st, driver := newTestStore(10 * time.Minute)

			for _, m := range []string{"a", "b", "c"} {
				model := m
				Expect(st.Set(ctx, settings.Partial{Model: &model})).To(Succeed())
			}

			// Seed plus three appended versions.
			Expect(driver.Inserts()).To(Equal(4))
		})

		It("survives an expired cache between writes", func() {
			st, _ := newTestStore(0)

			model := "first"
			Expect(st.Set(ctx, settings.Partial{Model: &model})).To(Succeed())

			model = "second"
			Expect(st.Set(ctx, settings.Partial{Model: &model})).To(Succeed())

			rec, err := st.Get(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Version).To(Equal(3))
			Expect(rec.Model).To(Equal("second"))
		})
	})
})
