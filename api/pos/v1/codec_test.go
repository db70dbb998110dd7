package posv1

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestJSONCodecRegistered(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	require.NotNil(t, codec)
	require.Equal(t, CodecName, codec.Name())
}

func TestJSONCodec_UpdateKeepsFieldPresence(t *testing.T) {
	codec := jsonCodec{}

	var req UpdateProductRequest
	require.NoError(t, codec.Unmarshal([]byte(`{"id":3,"stock":0,"price":"2.50"}`), &req))
	require.EqualValues(t, 3, req.ID)
	require.NotNil(t, req.Stock)
	stock, ok := req.Stock.Decimal()
	require.True(t, ok)
	require.True(t, stock.IsZero())
	require.NotNil(t, req.Price)
	price, ok := req.Price.Decimal()
	require.True(t, ok)
	require.True(t, price.Equal(decimal.RequireFromString("2.5")))
	require.Nil(t, req.Name)

	data, err := codec.Marshal(&DeleteProductResponse{Success: true})
	require.NoError(t, err)
	require.JSONEq(t, `{"success":true}`, string(data))
}

func TestJSONCodec_EmptyPayload(t *testing.T) {
	var req ListProductsRequest
	require.NoError(t, jsonCodec{}.Unmarshal(nil, &req))
	require.Error(t, jsonCodec{}.Unmarshal([]byte("{"), &req))
}

func TestNumber_Decimal(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{raw: `12`, want: "12", wantOK: true},
		{raw: `3.5`, want: "3.5", wantOK: true},
		{raw: `" 7 "`, want: "7", wantOK: true},
		{raw: `"abc"`},
		{raw: `true`},
		{raw: `{"v":1}`},
		{raw: ``},
	}
	for _, tt := range tests {
		got, ok := Number(tt.raw).Decimal()
		require.Equal(t, tt.wantOK, ok, tt.raw)
		if ok {
			require.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%q: got %s", tt.raw, got)
		}
	}
}
