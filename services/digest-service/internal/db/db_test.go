package db_test

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stoik/timeline/services/digest-service/internal/db"
)

type recordingExecer struct {
	statements []string
	err        error
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	return pgconn.CommandTag{}, r.err
}

var _ = Describe("Migrate", func() {
	It("creates the subscribers and digest_runs tables", func() {
		ex := &recordingExecer{}
		Expect(db.Migrate(context.Background(), ex)).To(Succeed())
		Expect(ex.statements).To(HaveLen(1))
		Expect(ex.statements[0]).To(ContainSubstring("CREATE TABLE IF NOT EXISTS subscribers"))
		Expect(ex.statements[0]).To(ContainSubstring("CREATE TABLE IF NOT EXISTS digest_runs"))
	})

	It("wraps failures", func() {
		ex := &recordingExecer{err: errors.New("permission denied")}
		Expect(db.Migrate(context.Background(), ex)).To(MatchError(ContainSubstring("failed to run migrations")))
	})
})

var _ = Describe("Connect", func() {
	It("requires a url", func() {
		_, err := db.Connect(context.Background(), "")
		Expect(err).To(MatchError(ContainSubstring("database.url not configured")))
	})
})
