package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kolzchut/ragbot/pkg/engine"
	"github.com/kolzchut/ragbot/pkg/interactions"
	"github.com/kolzchut/ragbot/pkg/logger"
	"github.com/kolzchut/ragbot/pkg/settings"
	"github.com/kolzchut/ragbot/pkg/store"
	"github.com/kolzchut/ragbot/pkg/store/inmemory"
	"github.com/kolzchut/ragbot/pkg/updater"
	testutils "github.com/kolzchut/ragbot/pkg/utils/test"
)

func jsonRequest(method, target string, payload any) *http.Request {
	body, err := json.Marshal(payload)
	Expect(err).NotTo(HaveOccurred())

	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	return req
}

var _ = Describe("handlers", func() {
	var (
		server *Server
		driver *inmemory.Driver
		eng    *testutils.MockEngine
		queue  *interactions.Queue
		ctx    context.Context
	)

	BeforeEach(func() {
		log := logger.Nop()
		driver = inmemory.NewDriver()
		eng = testutils.NewMockEngine()
		ctx = context.Background()

		st, err := settings.New(ctx, driver, "saved_configurations", 10*time.Minute, log)
		Expect(err).NotTo(HaveOccurred())

		queue, err = interactions.NewQueue(ctx, &interactions.Config{
			Driver:      driver,
			IndexPrefix: "conversations",
			Logger:      log,
		})
		Expect(err).NotTo(HaveOccurred())

		upd, err := updater.NewService(ctx, &updater.Config{
			Driver:          driver,
			Engine:          eng,
			UpdatesIndex:    "updates",
			EmbeddingPrefix: "embedded_fusion",
			IdentifierField: "doc_id",
			Logger:          log,
		})
		Expect(err).NotTo(HaveOccurred())

		server = NewServer(Config{
			ListenAddr:  ":0",
			CodeVersion: "test-version",
		}, st, eng, queue, upd, log)
	})

	Describe("panic containment", func() {
		It("turns a handler panic into a 500 response", func() {
			server.app.Get("/boom", func(_ *fiber.Ctx) error {
				panic("boom")
			})

			req, err := http.NewRequest(http.MethodGet, "/boom", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("GET /health", func() {
		It("returns 200", func() {
			req, err := http.NewRequest(http.MethodGet, "/health", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})
	})

	Describe("GET /get_config", func() {
		It("returns the seed configuration on a fresh store", func() {
			req, err := http.NewRequest(http.MethodGet, "/get_config", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var rec settings.Record
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &rec)).To(Succeed())
			Expect(rec.Model).To(Equal(settings.SeedRecord().Model))
			Expect(rec.Version).To(Equal(1))
		})
	})

	Describe("POST /set_config", func() {
		It("appends a new version inheriting omitted fields", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/set_config", map[string]string{
				"model": "gpt-4.1",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			req, err := http.NewRequest(http.MethodGet, "/get_config", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err = server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())

			var rec settings.Record
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &rec)).To(Succeed())
			Expect(rec.Model).To(Equal("gpt-4.1"))
			Expect(rec.Version).To(Equal(2))
			Expect(rec.NumOfPages).To(Equal(settings.SeedRecord().NumOfPages))
		})
	})

	Describe("POST /search", func() {
		BeforeEach(func() {
			eng.Answer = &engine.Answer{
				Text: "תשובה",
				Documents: []engine.Document{
					{DocID: 7, Title: "זכות", Link: "https://example.org/7", Content: "תוכן"},
				},
				Metadata: engine.Metadata{LLMModel: "gpt-4o-2024-08-06"},
			}
		})

		It("returns 400 when the query is missing", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/search", map[string]string{}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("answers the query and persists the interaction", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/search", map[string]string{
				"query":      "מה מגיע לי",
				"asked_from": "homepage",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var out SearchResponse
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &out)).To(Succeed())

			Expect(out.ConversationID).NotTo(BeEmpty())
			Expect(out.Type).To(Equal(interactions.TypeSearch))
			Expect(out.LLMResult).To(Equal("תשובה"))
			Expect(out.Docs).To(HaveLen(1))
			Expect(out.Docs[0].ID).To(Equal(7))
			Expect(out.ConfigVersion).To(Equal(1))
			Expect(out.CodeVersion).To(Equal("test-version"))
			Expect(out.Question).To(Equal("מה מגיע לי"))
			Expect(out.AskedFrom).To(Equal("homepage"))

			queue.Close()
			count, err := driver.Count(ctx, "conversations*", store.Query{
				Field: "conversation_id",
				Value: out.ConversationID,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})

		It("returns 500 when the engine fails", func() {
			eng.AnswerErr = fmt.Errorf("engine down")

			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/search", map[string]string{
				"query": "שאלה",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})

	Describe("POST /rate", func() {
		It("returns 400 without a rating", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/rate", map[string]any{
				"conversation_id": "conv-1",
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 without a conversation id", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/rate", map[string]any{
				"rating": 4,
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("accepts a complete rating", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/rate", map[string]any{
				"conversation_id": "conv-1",
				"rating":          4,
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
		})
	})

	Describe("POST /operate_docs", func() {
		doc := map[string]any{"doc_id": 7, "title": "t", "link": "l", "content": "c"}

		It("rejects unknown operations", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/operate_docs", map[string]any{
				"operation": "upsert",
				"documents": []any{doc},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))
		})

		It("rejects batches with mixed identifiers", func() {
			other := map[string]any{"doc_id": 8, "title": "t", "link": "l", "content": "c"}
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/operate_docs", map[string]any{
				"operation": "create",
				"documents": []any{doc, other},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusUnprocessableEntity))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring("same doc_id"))
		})

		It("creates documents via the engine", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/operate_docs", map[string]any{
				"operation": "create",
				"documents": []any{doc},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			calls := eng.UpdateCalls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].DeleteExisting).To(BeFalse())
			Expect(calls[0].Docs[0].DocID).To(Equal(7))
		})

		It("treats update as delete-then-create", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/operate_docs", map[string]any{
				"operation": "Update",
				"documents": []any{doc},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			calls := eng.UpdateCalls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0].DeleteExisting).To(BeTrue())
		})
	})

	Describe("DELETE /delete_doc", func() {
		BeforeEach(func() {
			for _, content := range []string{"first", "second"} {
				Expect(driver.Insert(ctx, "embedded_fusion_a", "", map[string]any{
					"doc_id":  7,
					"content": content,
				})).To(Succeed())
			}
		})

		It("rejects a non-integer position", func() {
			req, err := http.NewRequest(http.MethodDelete, "/delete_doc?doc_id=7&obj_id=abc", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("deletes by base-1 position", func() {
			req, err := http.NewRequest(http.MethodDelete, "/delete_doc?doc_id=7&obj_id=1", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			hits, err := driver.Search(ctx, "embedded_fusion*", store.Query{Field: "doc_id", Value: "7"})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
			Expect(hits[0].Source["content"]).To(Equal("second"))
		})

		It("returns 404 for position zero without crashing", func() {
			req, err := http.NewRequest(http.MethodDelete, "/delete_doc?doc_id=7&obj_id=0", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))

			count, err := driver.Count(ctx, "embedded_fusion*", store.Query{})
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("returns 404 past the last match", func() {
			req, err := http.NewRequest(http.MethodDelete, "/delete_doc?doc_id=7&obj_id=9", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("GET /get_doc", func() {
		It("returns 404 for an unknown identifier", func() {
			req, err := http.NewRequest(http.MethodGet, "/get_doc?doc_id=404", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns matches without vector fields", func() {
			Expect(driver.Insert(ctx, "embedded_fusion_a", "", map[string]any{
				"doc_id":         7,
				"content":        "תוכן",
				"content_vector": []float32{0.1},
			})).To(Succeed())

			req, err := http.NewRequest(http.MethodGet, "/get_doc?doc_id=7", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var sources []map[string]any
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &sources)).To(Succeed())
			Expect(sources).To(HaveLen(1))
			Expect(sources[0]).To(HaveKey("content"))
			Expect(sources[0]).NotTo(HaveKey("content_vector"))
		})
	})

	Describe("GET /initialize_elastic_from_json", func() {
		It("loads the corpus and delegates ingestion to the engine", func() {
			corpusPath := filepath.Join(GinkgoT().TempDir(), "corpus.json")
			corpusJSON := `[{"doc_id": 1, "title": "זכות", "link": "https://example.org/1", "content": "תוכן", "license": "CC"}]`
			Expect(os.WriteFile(corpusPath, []byte(corpusJSON), 0o600)).To(Succeed())
			server.config.CorpusPath = corpusPath

			req, err := http.NewRequest(http.MethodGet, "/initialize_elastic_from_json", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			calls := eng.CreateCalls()
			Expect(calls).To(HaveLen(1))
			Expect(calls[0]).To(HaveLen(1))
			Expect(calls[0][0].DocID).To(Equal(1))
		})

		It("returns 500 when the corpus file is missing", func() {
			server.config.CorpusPath = "/nonexistent/corpus.json"

			req, err := http.NewRequest(http.MethodGet, "/initialize_elastic_from_json", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusInternalServerError))
		})
	})
})
