// Package rdsexec runs arbor statements through the Aurora Data API.
//
// The Data API binds parameters by name, so statements are rendered with
// ":p1", ":p2" placeholders and arguments are sent as named SqlParameters.
package rdsexec

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata/types"
	"github.com/google/uuid"

	"github.com/jacentio/arbor/internal/sqlident"
	"github.com/jacentio/arbor/tree"
)

// ExecuteStatementAPI is the subset of *rdsdata.Client used by Executor.
type ExecuteStatementAPI interface {
	ExecuteStatement(ctx context.Context, params *rdsdata.ExecuteStatementInput, optFns ...func(*rdsdata.Options)) (*rdsdata.ExecuteStatementOutput, error)
}

// Engine selects identifier quoting for the cluster's engine.
type Engine string

const (
	// EnginePostgres is Aurora PostgreSQL. It is the default.
	EnginePostgres Engine = "postgres"
	// EngineMySQL is Aurora MySQL; identifiers are quoted with backticks.
	EngineMySQL    Engine = "mysql"
)

// Options identifies the cluster and database.
type Options struct {
	ResourceARN string
	SecretARN   string
	Database    string
	Engine      Engine
}

// Executor is a tree.Executor calling ExecuteStatement.
type Executor struct {
	api     ExecuteStatementAPI
	opts    Options
	dialect tree.Dialect
}

// New creates an Executor using api. Its dialect is tree.Postgres or
// tree.MySQL, depending on opts.Engine, with named placeholders.
func New(api ExecuteStatementAPI, opts Options) *Executor {
	d := tree.Postgres
	if opts.Engine == EngineMySQL {
		d = tree.MySQL
	}
	d.Name = "aurora-" + d.Name
	d.Placeholders = tree.Named
	return &Executor{api: api, opts: opts, dialect: d}
}

// NewFromEnv creates an Executor with a client built from the default AWS
// credential chain.
func NewFromEnv(ctx context.Context, opts Options) (*Executor, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(rdsdata.NewFromConfig(cfg), opts), nil
}

// Dialect implements tree.Executor.
func (e *Executor) Dialect() tree.Dialect {
	return e.dialect
}

// Query implements tree.Executor.
func (e *Executor) Query(ctx context.Context, stmt tree.Statement) ([]tree.Row, error) {
	params, err := parameters(stmt.Args)
	if err != nil {
		return nil, err
	}

	input := &rdsdata.ExecuteStatementInput{
		ResourceArn:           aws.String(e.opts.ResourceARN),
		SecretArn:             aws.String(e.opts.SecretARN),
		Sql:                   aws.String(stmt.SQL),
		Parameters:            params,
		IncludeResultMetadata: true,
	}
	if e.opts.Database != "" {
		input.Database = aws.String(e.opts.Database)
	}

	out, err := e.api.ExecuteStatement(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("execute statement: %w", err)
	}

	cols := make([]string, len(out.ColumnMetadata))
	for i, md := range out.ColumnMetadata {
		switch {
		case md.Label != nil && *md.Label != "":
			cols[i] = *md.Label
		case md.Name != nil:
			cols[i] = *md.Name
		default:
			cols[i] = fmt.Sprintf("column%d", i+1)
		}
	}

	rows := make([]tree.Row, 0, len(out.Records))
	for n, record := range out.Records {
		if len(record) != len(cols) {
			return nil, fmt.Errorf("record %d: %d fields for %d columns", n, len(record), len(cols))
		}
		row := make(tree.Row, len(cols))
		for i, field := range record {
			v, err := fieldValue(field)
			if err != nil {
				return nil, fmt.Errorf("record %d column %q: %w", n, cols[i], err)
			}
			row[cols[i]] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parameters converts positional arguments to p1..pn.
func parameters(args []any) ([]types.SqlParameter, error) {
	params := make([]types.SqlParameter, len(args))
	for i, arg := range args {
		p := types.SqlParameter{Name: aws.String(sqlident.ParamName(i+1, ""))}
		switch v := arg.(type) {
		case nil:
			p.Value = &types.FieldMemberIsNull{Value: true}
		case int64:
			p.Value = &types.FieldMemberLongValue{Value: v}
		case int:
			p.Value = &types.FieldMemberLongValue{Value: int64(v)}
		case int32:
			p.Value = &types.FieldMemberLongValue{Value: int64(v)}
		case float64:
			p.Value = &types.FieldMemberDoubleValue{Value: v}
		case bool:
			p.Value = &types.FieldMemberBooleanValue{Value: v}
		case string:
			// Untyped strings only compare with text columns; integer and
			// uuid keys are converted by tree.Mapping.BindID beforehand.
			p.Value = &types.FieldMemberStringValue{Value: v}
		case []byte:
			p.Value = &types.FieldMemberBlobValue{Value: v}
		case uuid.UUID:
			p.Value = &types.FieldMemberStringValue{Value: v.String()}
			p.TypeHint = types.TypeHintUuid
		case time.Time:
			p.Value = &types.FieldMemberStringValue{Value: v.UTC().Format("2006-01-02 15:04:05.000")}
			p.TypeHint = types.TypeHintTimestamp
		case fmt.Stringer:
			p.Value = &types.FieldMemberStringValue{Value: v.String()}
		default:
			return nil, fmt.Errorf("parameter %d: unsupported type %T", i+1, arg)
		}
		params[i] = p
	}
	return params, nil
}

func fieldValue(f types.Field) (any, error) {
	switch v := f.(type) {
	case *types.FieldMemberIsNull:
		return nil, nil
	case *types.FieldMemberLongValue:
		return v.Value, nil
	case *types.FieldMemberStringValue:
		return v.Value, nil
	case *types.FieldMemberDoubleValue:
		return v.Value, nil
	case *types.FieldMemberBooleanValue:
		return v.Value, nil
	case *types.FieldMemberBlobValue:
		return v.Value, nil
	default:
		return nil, fmt.Errorf("unsupported field type %T", f)
	}
}
