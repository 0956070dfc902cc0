package common

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeCapture(t *testing.T) {
	var typ Type
	require.NoError(t, typ.Capture([]string{"bigint"}))
	require.Equal(t, TypeBigInt, typ)
	require.NoError(t, typ.Capture([]string{"Varchar"}))
	require.Equal(t, TypeVarchar, typ)
	require.EqualError(t, typ.Capture([]string{"blob"}), "unknown column type BLOB")
}

func TestColumnInfoString(t *testing.T) {
	require.Equal(t, "a INT", ColumnInfo{Name: "a", ColumnType: IntColumnType}.String())
	require.Equal(t, "price DECIMAL(10, 2)", ColumnInfo{Name: "price", ColumnType: NewDecimalColumnType(10, 2)}.String())
}
