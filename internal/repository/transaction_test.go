package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/TeamMatch/internal/model"
)

func TestGormTransactor_WithinTransaction(t *testing.T) {
	t.Run("commits when fn succeeds", func(t *testing.T) {
		db, mock := newMockDB(t)
		tx := NewTransactor(db)
		teams := NewTeamRepository(db)
		members := NewUserTeamRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "teams"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "user_teams"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
		mock.ExpectCommit()

		err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
			team := &model.Team{Name: "gophers", MaxNum: 5, UserID: 3}
			if err := teams.Create(ctx, team); err != nil {
				return err
			}
			return members.Create(ctx, &model.UserTeam{UserID: 3, TeamID: team.ID, JoinTime: time.Now()})
		})
		require.NoError(t, err)
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		tx := NewTransactor(db)
		teams := NewTeamRepository(db)

		boom := errors.New("membership insert failed")

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "teams"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
		mock.ExpectRollback()

		err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
			if err := teams.Create(ctx, &model.Team{Name: "gophers", MaxNum: 5, UserID: 3}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nested call joins the outer transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tx := NewTransactor(db)

		mock.ExpectBegin()
		mock.ExpectCommit()

		calls := 0
		err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
			return tx.WithinTransaction(ctx, func(context.Context) error {
				calls++
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
}
