package arrow_client

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/pkg/errors"

	"github.com/pgermishuys/netchat/internal/golden"
	"github.com/pgermishuys/netchat/internal/tensor"
)

// Schema metadata keys carried with every fixture record.
const (
	MetaSeqLen    = "netchat.seq_len"
	MetaVocabSize = "netchat.vocab_size"
	MetaSeed      = "netchat.seed"
)

// FixtureSchema has one row per sequence position: the token id fed to the
// model and the expected logits over the vocabulary.
func FixtureSchema(o golden.Options) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{MetaSeqLen, MetaVocabSize, MetaSeed},
		[]string{strconv.Itoa(o.SeqLen), strconv.Itoa(o.VocabSize), strconv.FormatInt(o.Seed, 10)},
	)
	return arrow.NewSchema([]arrow.Field{
		{Name: "position", Type: arrow.PrimitiveTypes.Int32},
		{Name: golden.InputKey, Type: arrow.PrimitiveTypes.Int64},
		{Name: golden.LogitsKey, Type: arrow.FixedSizeListOf(int32(o.VocabSize), arrow.PrimitiveTypes.Float32)},
	}, &md)
}

// FixtureRecord converts a fixture into a single Arrow record. The caller
// releases it.
func FixtureRecord(mem memory.Allocator, f *golden.Fixture) (arrow.Record, error) {
	ids, err := f.Input.Int64s()
	if err != nil {
		return nil, errors.WithMessage(err, "input ids")
	}
	logits, err := f.Logits.Float32s()
	if err != nil {
		return nil, errors.WithMessage(err, "logits")
	}
	if len(ids) != f.SeqLen || len(logits) != f.SeqLen*f.VocabSize {
		return nil, errors.Errorf("fixture tensors %v and %v do not match seq len %d, vocab %d",
			f.Input.Shape, f.Logits.Shape, f.SeqLen, f.VocabSize)
	}

	b := array.NewRecordBuilder(mem, FixtureSchema(f.Options))
	defer b.Release()

	pos := b.Field(0).(*array.Int32Builder)
	idb := b.Field(1).(*array.Int64Builder)
	lb := b.Field(2).(*array.FixedSizeListBuilder)
	vb := lb.ValueBuilder().(*array.Float32Builder)

	pos.Reserve(f.SeqLen)
	idb.Reserve(f.SeqLen)
	vb.Reserve(len(logits))
	for i := 0; i < f.SeqLen; i++ {
		pos.Append(int32(i))
		idb.Append(ids[i])
		lb.Append(true)
		vb.AppendValues(logits[i*f.VocabSize:(i+1)*f.VocabSize], nil)
	}
	return b.NewRecord(), nil
}

// FixtureFromRecord rebuilds a fixture from a record made by FixtureRecord.
func FixtureFromRecord(rec arrow.Record) (*golden.Fixture, error) {
	md := rec.Schema().Metadata()
	var o golden.Options
	var err error
	if o.SeqLen, err = metaInt(md, MetaSeqLen); err != nil {
		return nil, err
	}
	if o.VocabSize, err = metaInt(md, MetaVocabSize); err != nil {
		return nil, err
	}
	seed, err := metaInt(md, MetaSeed)
	if err != nil {
		return nil, err
	}
	o.Seed = int64(seed)

	if int(rec.NumRows()) != o.SeqLen || rec.NumCols() != 3 {
		return nil, errors.Errorf("record has %d rows and %d columns, want %d rows and 3 columns", rec.NumRows(), rec.NumCols(), o.SeqLen)
	}
	idCol, ok := rec.Column(1).(*array.Int64)
	if !ok {
		return nil, errors.Errorf("column %s is %s, want int64", golden.InputKey, rec.Column(1).DataType())
	}
	listCol, ok := rec.Column(2).(*array.FixedSizeList)
	if !ok {
		return nil, errors.Errorf("column %s is %s, want fixed size list", golden.LogitsKey, rec.Column(2).DataType())
	}
	vals, ok := listCol.ListValues().(*array.Float32)
	if !ok {
		return nil, errors.Errorf("logits values are %s, want float32", listCol.ListValues().DataType())
	}

	input, err := tensor.FromInt64s([]int64{1, int64(o.SeqLen)}, idCol.Int64Values())
	if err != nil {
		return nil, err
	}
	logits, err := tensor.FromFloat32s([]int64{1, int64(o.SeqLen), int64(o.VocabSize)}, vals.Float32Values())
	if err != nil {
		return nil, err
	}
	return &golden.Fixture{Options: o, Input: input, Logits: logits}, nil
}

func metaInt(md arrow.Metadata, key string) (int, error) {
	i := md.FindKey(key)
	if i < 0 {
		return 0, errors.Errorf("record metadata is missing %s", key)
	}
	v, err := strconv.Atoi(md.Values()[i])
	if err != nil {
		return 0, errors.Wrapf(err, "record metadata %s", key)
	}
	return v, nil
}
