package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docapp/internal/logger"
	"docapp/internal/model"
	repoMocks "docapp/internal/repository/mocks"
)

type serviceMocks struct {
	repo *repoMocks.MockDocumentRepository
	tx   *repoMocks.MockTxRunner
	log  *repoMocks.MockDuplicateLogRepository
	out  *bytes.Buffer
}

func newTestService() (DocumentService, serviceMocks) {
	m := serviceMocks{
		repo: new(repoMocks.MockDocumentRepository),
		log:  new(repoMocks.MockDuplicateLogRepository),
		out:  &bytes.Buffer{},
	}
	m.tx = &repoMocks.MockTxRunner{Repo: m.repo}
	audit := NewAuditLogger(m.log, logger.New(m.out, "info"))
	return NewDocumentService(m.repo, m.tx, audit), m
}

func (m serviceMocks) assertAll(t *testing.T) {
	t.Helper()
	m.repo.AssertExpectations(t)
	m.tx.AssertExpectations(t)
	m.log.AssertExpectations(t)
}

func auditEntry(value, detail string) any {
	return mock.MatchedBy(func(e model.DuplicateLogEntry) bool {
		return e.EntityType == model.EntityDocument && e.DuplicateValue == value && e.Context == detail
	})
}

// assignIDs mimics the database filling in identifiers on insert.
func assignIDs(docID, firstSpecID int64) func(context.Context, *model.Document) *model.Document {
	return func(_ context.Context, d *model.Document) *model.Document {
		out := *d
		out.ID = docID
		out.Specifications = append([]model.Specification(nil), d.Specifications...)
		for i := range out.Specifications {
			out.Specifications[i].ID = firstSpecID + int64(i)
			out.Specifications[i].DocumentID = docID
		}
		return &out
	}
}

var testDate = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func createInput(number string, amounts ...string) DocumentInput {
	in := DocumentInput{Number: number, Date: testDate}
	for i, a := range amounts {
		in.Specifications = append(in.Specifications, SpecificationInput{
			Name:   fmt.Sprintf("item-%d", i+1),
			Amount: decimal.RequireFromString(a),
		})
	}
	return in
}

func TestDocumentService_Create(t *testing.T) {
	uniqueViolation := fmt.Errorf("insert document: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_documents_number"})

	tests := []struct {
		name       string
		in         DocumentInput
		setupMocks func(m serviceMocks)
		wantErr    error
		wantErrMsg string
		check      func(t *testing.T, doc *model.Document, m serviceMocks)
	}{
		{
			name: "happy path computes amount",
			in:   createInput("DOC-1", "100.50", "200.00"),
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByNumber", mock.Anything, "DOC-1").Return(nil, sql.ErrNoRows)
				m.repo.On("Create", mock.Anything, mock.MatchedBy(func(d *model.Document) bool {
					return d.ID == 0 && len(d.Specifications) == 2 &&
						d.Amount.Equal(decimal.RequireFromString("300.50"))
				})).Return(assignIDs(1, 10), nil)
			},
			check: func(t *testing.T, doc *model.Document, m serviceMocks) {
				assert.Equal(t, int64(1), doc.ID)
				require.Len(t, doc.Specifications, 2)
				assert.True(t, decimal.RequireFromString("300.50").Equal(doc.Amount))
				assert.Equal(t, int64(10), doc.Specifications[0].ID)
				assert.Equal(t, int64(11), doc.Specifications[1].ID)
				m.log.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
			},
		},
		{
			name: "duplicate found by pre-check",
			in:   createInput("DOC-1", "10"),
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByNumber", mock.Anything, "DOC-1").Return(&model.Document{ID: 9, Number: "DOC-1"}, nil)
				m.log.On("Insert", mock.Anything, auditEntry("DOC-1", "Create failed - duplicate key")).Return(nil).Once()
			},
			wantErr: ErrDuplicateNumber,
			check: func(t *testing.T, _ *model.Document, m serviceMocks) {
				m.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
				m.log.AssertNumberOfCalls(t, "Insert", 1)
			},
		},
		{
			name: "duplicate rejected by unique constraint after pre-check passed",
			in:   createInput("DOC-1", "10"),
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByNumber", mock.Anything, "DOC-1").Return(nil, sql.ErrNoRows)
				m.repo.On("Create", mock.Anything, mock.Anything).Return(nil, uniqueViolation)
				m.log.On("Insert", mock.Anything, auditEntry("DOC-1", "Create failed - duplicate key")).Return(nil).Once()
			},
			wantErr: ErrDuplicateNumber,
		},
		{
			name: "audit failure does not change outcome",
			in:   createInput("DOC-1", "10"),
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByNumber", mock.Anything, "DOC-1").Return(&model.Document{ID: 9}, nil)
				m.log.On("Insert", mock.Anything, mock.Anything).Return(errors.New("audit down")).Once()
			},
			wantErr: ErrDuplicateNumber,
			check: func(t *testing.T, _ *model.Document, m serviceMocks) {
				assert.Contains(t, m.out.String(), "failed to log duplicate entry")
			},
		},
		{
			name: "repository error is not audited",
			in:   createInput("DOC-1", "10"),
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByNumber", mock.Anything, "DOC-1").Return(nil, sql.ErrNoRows)
				m.repo.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErrMsg: "db fail",
		},
		{
			name: "transaction begin error",
			in:   createInput("DOC-1", "10"),
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(errors.New("begin tx: pool exhausted"))
			},
			wantErrMsg: "pool exhausted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService()
			tt.setupMocks(m)

			doc, err := svc.Create(context.Background(), tt.in)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, doc)
			case tt.wantErrMsg != "":
				assert.ErrorContains(t, err, tt.wantErrMsg)
				assert.NotErrorIs(t, err, ErrDuplicateNumber)
				assert.Nil(t, doc)
			default:
				require.NoError(t, err)
				require.NotNil(t, doc)
			}
			if tt.check != nil {
				tt.check(t, doc, m)
			}
			m.assertAll(t)
		})
	}
}

func TestDocumentService_Create_SameNumberTwice(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
	m.repo.On("FindByNumber", mock.Anything, "DOC-1").Return(nil, sql.ErrNoRows).Once()
	m.repo.On("Create", mock.Anything, mock.Anything).Return(assignIDs(1, 1), nil).Once()
	m.repo.On("FindByNumber", mock.Anything, "DOC-1").Return(&model.Document{ID: 1, Number: "DOC-1"}, nil).Once()
	m.log.On("Insert", mock.Anything, auditEntry("DOC-1", "Create failed - duplicate key")).Return(nil).Once()

	first, err := svc.Create(ctx, createInput("DOC-1", "1"))
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := svc.Create(ctx, createInput("DOC-1", "1"))
	assert.ErrorIs(t, err, ErrDuplicateNumber)
	assert.Nil(t, second)

	m.log.AssertNumberOfCalls(t, "Insert", 1)
	m.assertAll(t)
}

func TestDocumentService_Create_AmountsUseStoredScale(t *testing.T) {
	svc, m := newTestService()

	m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
	m.repo.On("FindByNumber", mock.Anything, "DOC-1").Return(nil, sql.ErrNoRows)
	m.repo.On("Create", mock.Anything, mock.Anything).Return(assignIDs(1, 1), nil)

	doc, err := svc.Create(context.Background(), createInput("DOC-1", "1.004", "1.004", "2.005"))

	require.NoError(t, err)
	require.Len(t, doc.Specifications, 3)
	childSum := decimal.Zero
	for _, s := range doc.Specifications {
		assert.LessOrEqual(t, -s.Amount.Exponent(), int32(AmountScale), "amount %s", s.Amount)
		childSum = childSum.Add(s.Amount)
	}
	assert.True(t, decimal.RequireFromString("4.01").Equal(doc.Amount), "amount %s", doc.Amount)
	assert.True(t, childSum.Equal(doc.Amount), "children %s, document %s", childSum, doc.Amount)
	m.assertAll(t)
}

func TestDocumentService_Update_AmountsUseStoredScale(t *testing.T) {
	svc, m := newTestService()
	five := int64(5)

	m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
	m.repo.On("FindByID", mock.Anything, int64(1)).Return(existingDocument(), nil)
	m.repo.On("Update", mock.Anything, mock.MatchedBy(func(d *model.Document) bool {
		sum := decimal.Zero
		for _, s := range d.Specifications {
			sum = sum.Add(s.Amount)
		}
		return sum.Equal(d.Amount) && d.Amount.Equal(decimal.RequireFromString("2.00"))
	}), []int64{6}).Return(func(_ context.Context, d *model.Document, _ []int64) *model.Document {
		return d
	}, nil)

	in := DocumentInput{
		Number: "DOC-1",
		Date:   testDate,
		Specifications: []SpecificationInput{
			{ID: &five, Name: "A", Amount: decimal.RequireFromString("1.004")},
			{Name: "B", Amount: decimal.RequireFromString("1.004")},
		},
	}
	doc, err := svc.Update(context.Background(), 1, in)

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1.00").Equal(doc.Specifications[0].Amount))
	m.assertAll(t)
}

func existingDocument() *model.Document {
	return &model.Document{
		ID:     1,
		Number: "DOC-1",
		Date:   testDate,
		Amount: decimal.NewFromInt(7),
		Specifications: []model.Specification{
			{ID: 5, DocumentID: 1, Name: "X", Amount: decimal.NewFromInt(3)},
			{ID: 6, DocumentID: 1, Name: "Y", Amount: decimal.NewFromInt(4)},
		},
	}
}

func TestDocumentService_Update(t *testing.T) {
	five := int64(5)
	note := "updated"
	reconcileInput := DocumentInput{
		Number: "DOC-1",
		Date:   testDate.AddDate(0, 0, 1),
		Note:   &note,
		Specifications: []SpecificationInput{
			{ID: &five, Name: "A", Amount: decimal.NewFromInt(10)},
			{Name: "New", Amount: decimal.NewFromInt(5)},
		},
	}
	renamed := createInput("DOC-2", "1")

	tests := []struct {
		name       string
		id         int64
		in         DocumentInput
		setupMocks func(m serviceMocks)
		wantErr    error
		wantErrMsg string
		check      func(t *testing.T, doc *model.Document, m serviceMocks)
	}{
		{
			name: "diff and patch specifications",
			id:   1,
			in:   reconcileInput,
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByID", mock.Anything, int64(1)).Return(existingDocument(), nil)
				m.repo.On("Update", mock.Anything, mock.MatchedBy(func(d *model.Document) bool {
					return len(d.Specifications) == 2 &&
						d.Specifications[0].ID == 5 && d.Specifications[0].Name == "A" &&
						d.Specifications[1].ID == 0 && d.Specifications[1].Name == "New" &&
						d.Amount.Equal(decimal.NewFromInt(15)) &&
						d.Note != nil && *d.Note == "updated"
				}), []int64{6}).Return(func(_ context.Context, d *model.Document, _ []int64) *model.Document {
					out := *d
					out.Specifications = append([]model.Specification(nil), d.Specifications...)
					out.Specifications[1].ID = 7
					return &out
				}, nil)
			},
			check: func(t *testing.T, doc *model.Document, m serviceMocks) {
				require.Len(t, doc.Specifications, 2)
				assert.Equal(t, int64(5), doc.Specifications[0].ID)
				assert.True(t, decimal.NewFromInt(10).Equal(doc.Specifications[0].Amount))
				assert.Equal(t, int64(7), doc.Specifications[1].ID)
				assert.True(t, decimal.NewFromInt(15).Equal(doc.Amount))
				m.repo.AssertNotCalled(t, "FindByNumber", mock.Anything, mock.Anything)
			},
		},
		{
			name: "number change checked against other documents",
			id:   1,
			in:   renamed,
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByID", mock.Anything, int64(1)).Return(existingDocument(), nil)
				m.repo.On("FindByNumber", mock.Anything, "DOC-2").Return(nil, sql.ErrNoRows)
				m.repo.On("Update", mock.Anything, mock.MatchedBy(func(d *model.Document) bool {
					return d.Number == "DOC-2" && len(d.Specifications) == 1
				}), []int64{5, 6}).Return(func(_ context.Context, d *model.Document, _ []int64) *model.Document {
					return d
				}, nil)
			},
			check: func(t *testing.T, doc *model.Document, _ serviceMocks) {
				assert.Equal(t, "DOC-2", doc.Number)
				assert.True(t, decimal.NewFromInt(1).Equal(doc.Amount))
			},
		},
		{
			name: "number used by a different document",
			id:   1,
			in:   renamed,
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByID", mock.Anything, int64(1)).Return(existingDocument(), nil)
				m.repo.On("FindByNumber", mock.Anything, "DOC-2").Return(&model.Document{ID: 2, Number: "DOC-2"}, nil)
				m.log.On("Insert", mock.Anything, auditEntry("DOC-2", "Update failed - duplicate key (id=1)")).Return(nil).Once()
			},
			wantErr: ErrDuplicateNumber,
			check: func(t *testing.T, _ *model.Document, m serviceMocks) {
				m.repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
			},
		},
		{
			name: "unique constraint on update",
			id:   1,
			in:   renamed,
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByID", mock.Anything, int64(1)).Return(existingDocument(), nil)
				m.repo.On("FindByNumber", mock.Anything, "DOC-2").Return(nil, sql.ErrNoRows)
				m.repo.On("Update", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("update document: %w", &pgconn.PgError{Code: "23505", ConstraintName: "uq_documents_number"}))
				m.log.On("Insert", mock.Anything, auditEntry("DOC-2", "Update failed - duplicate key (id=1)")).Return(nil).Once()
			},
			wantErr: ErrDuplicateNumber,
		},
		{
			name: "not found",
			id:   404,
			in:   renamed,
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByID", mock.Anything, int64(404)).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "deleted concurrently before write",
			id:   1,
			in:   createInput("DOC-1", "1"),
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByID", mock.Anything, int64(1)).Return(existingDocument(), nil)
				m.repo.On("Update", mock.Anything, mock.Anything, mock.Anything).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name:       "non-positive id never exists",
			id:         0,
			in:         renamed,
			setupMocks: func(serviceMocks) {},
			wantErr:    ErrNotFound,
		},
		{
			name: "load error",
			id:   1,
			in:   renamed,
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelRepeatableRead).Return(nil)
				m.repo.On("FindByID", mock.Anything, int64(1)).Return(nil, errors.New("db fail"))
			},
			wantErrMsg: "db fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService()
			tt.setupMocks(m)

			doc, err := svc.Update(context.Background(), tt.id, tt.in)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, doc)
			case tt.wantErrMsg != "":
				assert.ErrorContains(t, err, tt.wantErrMsg)
				assert.Nil(t, doc)
			default:
				require.NoError(t, err)
				require.NotNil(t, doc)
			}
			if tt.check != nil {
				tt.check(t, doc, m)
			}
			if !errors.Is(tt.wantErr, ErrDuplicateNumber) {
				m.log.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
			}
			m.assertAll(t)
		})
	}
}

func TestDocumentService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         int64
		setupMocks func(mRepo *repoMocks.MockDocumentRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   1,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(1)).Return(existingDocument(), nil)
			},
		},
		{
			name:       "non-positive id never exists",
			id:         -1,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {},
			wantErr:    ErrNotFound,
		},
		{
			name: "not found - mapping sql.ErrNoRows",
			id:   2,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(2)).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "generic repository error",
			id:   3,
			setupMocks: func(mRepo *repoMocks.MockDocumentRepository) {
				mRepo.On("FindByID", ctx, int64(3)).Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService()
			tt.setupMocks(m.repo)

			doc, err := svc.Get(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
				}
				assert.Nil(t, doc)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, doc)
				assert.Equal(t, tt.id, doc.ID)
			}
			m.assertAll(t)
		})
	}
}

func TestDocumentService_GetIsIdempotent(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()
	m.repo.On("FindByID", ctx, int64(1)).Return(existingDocument(), nil)

	first, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	second, err := svc.Get(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	m.tx.AssertNotCalled(t, "InTx", mock.Anything, mock.Anything)
}

func TestDocumentService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		svc, m := newTestService()
		m.repo.On("List", ctx).Return([]model.Document{*existingDocument()}, nil)

		docs, err := svc.List(ctx)

		assert.NoError(t, err)
		assert.Len(t, docs, 1)
		m.tx.AssertNotCalled(t, "InTx", mock.Anything, mock.Anything)
		m.assertAll(t)
	})

	t.Run("repository error", func(t *testing.T) {
		svc, m := newTestService()
		m.repo.On("List", ctx).Return(nil, errors.New("db fail"))

		docs, err := svc.List(ctx)

		assert.Error(t, err)
		assert.Nil(t, docs)
		m.assertAll(t)
	})
}

func TestDocumentService_Delete(t *testing.T) {
	tests := []struct {
		name       string
		id         int64
		setupMocks func(m serviceMocks)
		wantErr    error
		wantErrMsg string
	}{
		{
			name: "happy path",
			id:   1,
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelReadCommitted).Return(nil)
				m.repo.On("Delete", mock.Anything, int64(1)).Return(true, nil)
			},
		},
		{
			name:       "zero id never exists",
			id:         0,
			setupMocks: func(serviceMocks) {},
			wantErr:    ErrNotFound,
		},
		{
			name: "not found",
			id:   2,
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelReadCommitted).Return(nil)
				m.repo.On("Delete", mock.Anything, int64(2)).Return(false, nil)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "repository delete error",
			id:   3,
			setupMocks: func(m serviceMocks) {
				m.tx.On("InTx", mock.Anything, sql.LevelReadCommitted).Return(nil)
				m.repo.On("Delete", mock.Anything, int64(3)).Return(false, errors.New("db fail"))
			},
			wantErrMsg: "db fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService()
			tt.setupMocks(m)

			err := svc.Delete(context.Background(), tt.id)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantErrMsg != "":
				assert.ErrorContains(t, err, tt.wantErrMsg)
			default:
				assert.NoError(t, err)
			}
			m.assertAll(t)
		})
	}
}

func TestDocumentService_DeleteThenGet(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.tx.On("InTx", mock.Anything, sql.LevelReadCommitted).Return(nil)
	m.repo.On("Delete", mock.Anything, int64(1)).Return(true, nil)
	m.repo.On("FindByID", ctx, int64(1)).Return(nil, sql.ErrNoRows)

	require.NoError(t, svc.Delete(ctx, 1))
	_, err := svc.Get(ctx, 1)

	assert.ErrorIs(t, err, ErrNotFound)
	m.assertAll(t)
}
