package parser

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/squareup/planopt/common"
	"github.com/squareup/planopt/conf"
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/expr"
	"github.com/squareup/planopt/plan"
)

// ParsePlan parses text and builds the plan it describes. Partition counts and batch sizes that are not given
// default to the values in cfg.
func ParsePlan(text string, cfg *conf.Config) (plan.Node, error) {
	ast, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return Build(ast, cfg)
}

// Build turns a parsed plan into plan nodes.
func Build(ast *AST, cfg *conf.Config) (plan.Node, error) {
	b := &builder{cfg: cfg}
	return b.build(ast.Root)
}

type builder struct {
	cfg *conf.Config
}

type opBuilder func(b *builder, n *Node, args args, inputs []plan.Node) (plan.Node, error)

type opDef struct {
	inputs int
	keys   []string
	build  opBuilder
}

var ops map[string]opDef

func init() {
	ops = map[string]opDef{
		"table_scan":            {inputs: 0, keys: []string{"name", "columns", "partitions", "order"}, build: buildTableScan},
		"source_scan":           {inputs: 0, keys: []string{"name", "columns", "partitions", "order"}, build: buildSourceScan},
		"filter":                {inputs: 1, keys: []string{"where"}, build: buildFilter},
		"projection":            {inputs: 1, keys: []string{"exprs"}, build: buildProjection},
		"coalesce_batches":      {inputs: 1, keys: []string{"target_batch_size"}, build: buildCoalesceBatches},
		"coalesce_partitions":   {inputs: 1, build: buildCoalescePartitions},
		"repartition":           {inputs: 1, keys: []string{"scheme", "keys", "partitions", "preserve_order"}, build: buildRepartition},
		"sort":                  {inputs: 1, keys: []string{"order", "preserve_partitioning"}, build: buildSort},
		"sort_preserving_merge": {inputs: 1, keys: []string{"order"}, build: buildSortPreservingMerge},
		"hash_join":             {inputs: 2, keys: []string{"on", "join_type"}, build: buildHashJoin},
	}
}

func (b *builder) build(n *Node) (plan.Node, error) {
	op := strings.ToLower(n.Op)
	def, ok := ops[op]
	if !ok {
		return nil, textError(participle.Errorf(n.Pos, "unknown operator %q", n.Op))
	}
	if len(n.Children) != def.inputs {
		return nil, textError(participle.Errorf(n.Pos, "%s expects %d inputs, got %d", op, def.inputs, len(n.Children)))
	}
	a, err := newArgs(op, n.Args, def.keys)
	if err != nil {
		return nil, err
	}
	inputs := make([]plan.Node, len(n.Children))
	for i, child := range n.Children {
		inputs[i], err = b.build(child)
		if err != nil {
			return nil, err
		}
	}
	res, err := def.build(b, n, a, inputs)
	if err != nil {
		// plan construction errors keep their own code
		return nil, errors.Wrapf(err, "%s at %s", op, n.Pos)
	}
	return res, nil
}

func textError(err error) error {
	return errors.WithStack(errors.NewInvalidPlanTextError(err.Error()))
}

type args map[string]*Arg

func newArgs(op string, list []*Arg, keys []string) (args, error) {
	a := args{}
	for _, arg := range list {
		key := strings.ToLower(arg.Key)
		if arg.Where != nil {
			key = "where"
		}
		known := false
		for _, k := range keys {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			return nil, textError(participle.Errorf(arg.Pos, "unknown argument %q for %s", key, op))
		}
		if _, dup := a[key]; dup {
			return nil, textError(participle.Errorf(arg.Pos, "duplicate argument %q for %s", key, op))
		}
		a[key] = arg
	}
	return a, nil
}

func (a args) required(n *Node, key string) (*Arg, error) {
	arg, ok := a[key]
	if !ok {
		return nil, textError(participle.Errorf(n.Pos, "%s requires argument %q", n.Op, key))
	}
	return arg, nil
}

func (a args) str(n *Node, key string) (string, error) {
	arg, err := a.required(n, key)
	if err != nil {
		return "", err
	}
	switch {
	case arg.Value.Ident != nil:
		return *arg.Value.Ident, nil
	case arg.Value.String != nil:
		return *arg.Value.String, nil
	}
	return "", textError(participle.Errorf(arg.Value.Pos, "%s must be a name", key))
}

func (a args) int(key string, def int) (int, error) {
	arg, ok := a[key]
	if !ok {
		return def, nil
	}
	if arg.Value.Number == nil {
		return 0, textError(participle.Errorf(arg.Value.Pos, "%s must be a number", key))
	}
	v, err := strconv.Atoi(*arg.Value.Number)
	if err != nil {
		return 0, textError(participle.Errorf(arg.Value.Pos, "%s must be an integer", key))
	}
	return v, nil
}

func (a args) bool(key string) (bool, error) {
	arg, ok := a[key]
	if !ok {
		return false, nil
	}
	if arg.Value.Ident != nil {
		switch strings.ToLower(*arg.Value.Ident) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, textError(participle.Errorf(arg.Value.Pos, "%s must be true or false", key))
}

func (a args) list(key string) ([]*Item, *Arg, error) {
	arg, ok := a[key]
	if !ok {
		return nil, nil, nil
	}
	if arg.Value.List == nil && (arg.Value.Number != nil || arg.Value.String != nil || arg.Value.Ident != nil) {
		return nil, nil, textError(participle.Errorf(arg.Value.Pos, "%s must be a list", key))
	}
	return arg.Value.List, arg, nil
}

func resolveColumn(schema *plan.Schema, item *Item) (*expr.Column, error) {
	if item.Pair != nil {
		return nil, textError(participle.Errorf(item.Pos, "expected a column, got a pair"))
	}
	c := schema.Column(item.Name)
	if c == nil {
		return nil, textError(participle.Errorf(item.Pos, "unknown column %q, input has %s", item.Name,
			strings.Join(schema.ColumnNames(), ", ")))
	}
	return c, nil
}

func buildOrdering(schema *plan.Schema, items []*Item) (expr.Ordering, error) {
	var ordering expr.Ordering
	for _, item := range items {
		c, err := resolveColumn(schema, item)
		if err != nil {
			return nil, err
		}
		opts := expr.DefaultSortOptions
		opts.Descending = strings.EqualFold(item.Dir, "desc")
		if item.Nulls != "" {
			opts.NullsFirst = strings.EqualFold(item.Nulls, "first")
		}
		ordering = append(ordering, expr.NewSortExpr(c, opts))
	}
	return ordering, nil
}

func buildSchema(items []*Item) (*plan.Schema, error) {
	cols := make([]common.ColumnInfo, len(items))
	for i, item := range items {
		if item.Pair != nil {
			return nil, textError(participle.Errorf(item.Pos, "expected a column definition, got a pair"))
		}
		colType := common.IntColumnType
		if item.Type != common.TypeUnknown {
			colType = common.ColumnType{Type: item.Type}
		}
		cols[i] = common.ColumnInfo{Name: item.Name, ColumnType: colType}
	}
	schema := plan.NewSchema(cols...)
	for i, name := range schema.ColumnNames() {
		if schema.IndexOf(name) != i {
			return nil, textError(participle.Errorf(items[i].Pos, "duplicate column %q", name))
		}
	}
	return schema, nil
}

func scanParts(n *Node, a args) (string, *plan.Schema, int, expr.Ordering, error) {
	name, err := a.str(n, "name")
	if err != nil {
		return "", nil, 0, nil, err
	}
	if _, err := a.required(n, "columns"); err != nil {
		return "", nil, 0, nil, err
	}
	colItems, _, err := a.list("columns")
	if err != nil {
		return "", nil, 0, nil, err
	}
	schema, err := buildSchema(colItems)
	if err != nil {
		return "", nil, 0, nil, err
	}
	partitions, err := a.int("partitions", 1)
	if err != nil {
		return "", nil, 0, nil, err
	}
	orderItems, _, err := a.list("order")
	if err != nil {
		return "", nil, 0, nil, err
	}
	ordering, err := buildOrdering(schema, orderItems)
	if err != nil {
		return "", nil, 0, nil, err
	}
	return name, schema, partitions, ordering, nil
}

func buildTableScan(_ *builder, n *Node, a args, _ []plan.Node) (plan.Node, error) {
	name, schema, partitions, ordering, err := scanParts(n, a)
	if err != nil {
		return nil, err
	}
	return plan.NewTableScan(name, schema, partitions, ordering)
}

func buildSourceScan(_ *builder, n *Node, a args, _ []plan.Node) (plan.Node, error) {
	name, schema, partitions, ordering, err := scanParts(n, a)
	if err != nil {
		return nil, err
	}
	return plan.NewSourceScan(name, schema, partitions, ordering)
}

func buildOperand(schema *plan.Schema, o *Operand, cmp *Comparison) (expr.Expression, error) {
	switch {
	case o.Number != nil:
		return expr.NewLiteral(*o.Number), nil
	case o.String != nil:
		return expr.NewLiteral("'" + *o.String + "'"), nil
	default:
		c := schema.Column(*o.Column)
		if c == nil {
			return nil, textError(participle.Errorf(cmp.Pos, "unknown column %q, input has %s", *o.Column,
				strings.Join(schema.ColumnNames(), ", ")))
		}
		return c, nil
	}
}

func buildFilter(_ *builder, n *Node, a args, inputs []plan.Node) (plan.Node, error) {
	arg, err := a.required(n, "where")
	if err != nil {
		return nil, err
	}
	schema := inputs[0].Schema()
	var predicate expr.Expression
	for _, cmp := range arg.Where.Comparisons {
		left, err := buildOperand(schema, cmp.Left, cmp)
		if err != nil {
			return nil, err
		}
		right, err := buildOperand(schema, cmp.Right, cmp)
		if err != nil {
			return nil, err
		}
		op, ok := expr.ParseOperator(cmp.Op)
		if !ok {
			return nil, textError(participle.Errorf(cmp.Pos, "unknown operator %q", cmp.Op))
		}
		term := expr.NewBinaryExpr(left, op, right)
		if predicate == nil {
			predicate = term
		} else {
			predicate = expr.NewBinaryExpr(predicate, expr.OpAnd, term)
		}
	}
	return plan.NewFilter(inputs[0], predicate)
}

func buildProjection(_ *builder, n *Node, a args, inputs []plan.Node) (plan.Node, error) {
	if _, err := a.required(n, "exprs"); err != nil {
		return nil, err
	}
	items, _, err := a.list("exprs")
	if err != nil {
		return nil, err
	}
	exprs := make([]expr.Expression, len(items))
	names := make([]string, len(items))
	for i, item := range items {
		c, err := resolveColumn(inputs[0].Schema(), item)
		if err != nil {
			return nil, err
		}
		exprs[i] = c
		names[i] = item.Name
		if item.Alias != "" {
			names[i] = item.Alias
		}
	}
	return plan.NewProjection(inputs[0], exprs, names)
}

func buildCoalesceBatches(b *builder, _ *Node, a args, inputs []plan.Node) (plan.Node, error) {
	size, err := a.int("target_batch_size", b.cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	return plan.NewCoalesceBatches(inputs[0], size)
}

func buildCoalescePartitions(_ *builder, _ *Node, _ args, inputs []plan.Node) (plan.Node, error) {
	return plan.NewCoalescePartitions(inputs[0])
}

func buildRepartition(b *builder, n *Node, a args, inputs []plan.Node) (plan.Node, error) {
	scheme := "round_robin"
	if _, ok := a["scheme"]; ok {
		s, err := a.str(n, "scheme")
		if err != nil {
			return nil, err
		}
		scheme = strings.ToLower(s)
	}
	count, err := a.int("partitions", b.cfg.TargetPartitions)
	if err != nil {
		return nil, err
	}
	keyItems, keysArg, err := a.list("keys")
	if err != nil {
		return nil, err
	}
	var partitioning plan.Partitioning
	switch scheme {
	case "round_robin":
		if keysArg != nil {
			return nil, textError(participle.Errorf(keysArg.Pos, "keys are only allowed with scheme = hash"))
		}
		partitioning = plan.NewRoundRobinPartitioning(count)
	case "hash":
		keys := make([]expr.Expression, len(keyItems))
		for i, item := range keyItems {
			c, err := resolveColumn(inputs[0].Schema(), item)
			if err != nil {
				return nil, err
			}
			keys[i] = c
		}
		partitioning = plan.NewHashPartitioning(keys, count)
	default:
		return nil, textError(participle.Errorf(a["scheme"].Value.Pos, "unknown partitioning scheme %q", scheme))
	}
	preserve, err := a.bool("preserve_order")
	if err != nil {
		return nil, err
	}
	repartition, err := plan.NewRepartition(inputs[0], partitioning)
	if err != nil {
		return nil, err
	}
	if preserve {
		return repartition.WithPreserveOrder(), nil
	}
	return repartition, nil
}

func orderArg(n *Node, a args, schema *plan.Schema) (expr.Ordering, error) {
	if _, err := a.required(n, "order"); err != nil {
		return nil, err
	}
	items, _, err := a.list("order")
	if err != nil {
		return nil, err
	}
	return buildOrdering(schema, items)
}

func buildSort(_ *builder, n *Node, a args, inputs []plan.Node) (plan.Node, error) {
	ordering, err := orderArg(n, a, inputs[0].Schema())
	if err != nil {
		return nil, err
	}
	preserve, err := a.bool("preserve_partitioning")
	if err != nil {
		return nil, err
	}
	return plan.NewSort(inputs[0], ordering, preserve)
}

func buildSortPreservingMerge(_ *builder, n *Node, a args, inputs []plan.Node) (plan.Node, error) {
	ordering, err := orderArg(n, a, inputs[0].Schema())
	if err != nil {
		return nil, err
	}
	return plan.NewSortPreservingMerge(inputs[0], ordering)
}

func buildHashJoin(_ *builder, n *Node, a args, inputs []plan.Node) (plan.Node, error) {
	if _, err := a.required(n, "on"); err != nil {
		return nil, err
	}
	items, _, err := a.list("on")
	if err != nil {
		return nil, err
	}
	left, right := inputs[0].Schema(), inputs[1].Schema()
	on := make([]plan.JoinOn, len(items))
	for i, item := range items {
		if item.Pair == nil {
			return nil, textError(participle.Errorf(item.Pos, "join conditions are written (left, right)"))
		}
		l := left.Column(item.Pair.Left)
		r := right.Column(item.Pair.Right)
		if l == nil || r == nil {
			return nil, textError(participle.Errorf(item.Pos, "unknown join column in (%s, %s)", item.Pair.Left,
				item.Pair.Right))
		}
		on[i] = plan.JoinOn{Left: l, Right: r}
	}
	joinType := plan.InnerJoin
	if _, ok := a["join_type"]; ok {
		s, err := a.str(n, "join_type")
		if err != nil {
			return nil, err
		}
		joinType, err = plan.ParseJoinType(s)
		if err != nil {
			return nil, err
		}
	}
	return plan.NewHashJoin(inputs[0], inputs[1], on, joinType)
}
