package mongo

import (
	"context"
	"errors"
	"fmt"
	apperrors "slotkeeper/pkg/errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// illegalOperation is the server code returned when a standalone mongod is
// asked to start a transaction.
const illegalOperation = 20

// ErrTransactionsUnsupported means the deployment is not a replica set, so
// multi-document slot writes cannot be made atomic.
var ErrTransactionsUnsupported = errors.New("mongo deployment does not support transactions")

// TransactionFunc runs inside a transaction. The context it receives is a
// mongo.SessionContext and must be passed to every repository call.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
	opts   *options.TransactionOptions
}

// NewTransactionManager reads from a majority-committed snapshot on the
// primary and commits with majority write concern, so a batch of created
// occurrences is checked and written against one consistent view.
func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{
		client: client,
		opts: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()).
			SetReadPreference(readpref.Primary()),
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	}, m.opts)
	return classifyTransactionError(err)
}

// classifyTransactionError passes domain errors raised by fn through
// untouched and wraps driver failures.
func classifyTransactionError(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && (cmdErr.Code == illegalOperation || strings.Contains(cmdErr.Message, "replica set")) {
		return fmt.Errorf("%w: %v", ErrTransactionsUnsupported, err)
	}
	return fmt.Errorf("transaction failed: %w", err)
}

// NoopTransactionManager runs fn directly. It backs stores that serialize
// writes on their own.
type NoopTransactionManager struct{}

func (NoopTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	return fn(ctx)
}
