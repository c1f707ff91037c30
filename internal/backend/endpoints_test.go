package backend

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlex(t *testing.T) {
	var p Product
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"x","quantity":12.5,"price":"0.25"}`), &p))
	assert.Equal(t, Flex("12.5"), p.Quantity)
	assert.Equal(t, Flex("0.25"), p.Price)

	out, err := json.Marshal(struct {
		A Flex `json:"a"`
		B Flex `json:"b"`
	}{A: "7", B: "n/a"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":7,"b":"n/a"}`, string(out))

	var f Flex = "x"
	require.NoError(t, json.Unmarshal([]byte(`null`), &f))
	assert.Equal(t, Flex(""), f)
}

func TestDecodeProduct(t *testing.T) {
	p, err := DecodeProduct(&Response{Body: []byte(`{"product":{"_id":"a","type":"carrot"}}`)})
	require.NoError(t, err)
	assert.Equal(t, "carrot", p.Type)

	p, err = DecodeProduct(&Response{Body: []byte(`{"_id":"b","status":"Harvested"}`)})
	require.NoError(t, err)
	assert.Equal(t, "b", p.ID)
	assert.Equal(t, "Harvested", p.Status)

	_, err = DecodeProduct(&Response{Body: []byte(`{"message":"created"}`)})
	assert.Error(t, err)
}

func TestUpdateStatusRequest_RoutesByRole(t *testing.T) {
	farmer := UpdateStatusRequest(RoleFarmer, "p1", "Harvested", "0xh")
	assert.Equal(t, "PUT /api/farmer/products/p1/status", farmer.String())

	dist := UpdateStatusRequest(RoleDistributor, "p1", "InTransit", "0xh")
	assert.Equal(t, "PUT /api/distributor/updateProductStatus/p1", dist.String())
	assert.Equal(t, map[string]string{"status": "InTransit", "blockchainTxHash": "0xh"}, dist.Body)
}

func TestInitiateTransferRequest_RecipientField(t *testing.T) {
	tests := []struct {
		role  string
		field string
	}{
		{RoleFarmer, "distributorId"},
		{RoleDistributor, "retailerId"},
		{RoleRetailer, "consumerId"},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			req := InitiateTransferRequest(tt.role, "p1", "bob", 3, "0xh")
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, "/initiateTransfer", req.Path)
			body := req.Body.(map[string]interface{})
			assert.Equal(t, "bob", body[tt.field])
			assert.Equal(t, int64(3), body["quantity"])
		})
	}
}

func TestRequestBodies(t *testing.T) {
	raw, err := UpdateProductRequest(RoleFarmer, "p1", map[string]interface{}{"origin": "Kent"}, "").EncodeBody()
	require.NoError(t, err)
	assert.JSONEq(t, `{"origin":"Kent"}`, string(raw))

	raw, err = SyncProductRequest(RoleRetailer, "p1", "").EncodeBody()
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))

	raw, err = GetProductRequest(RoleRetailer, "p1").EncodeBody()
	require.NoError(t, err)
	assert.Nil(t, raw)

	assert.Equal(t, "POST /api/consumer/cancelTransfer/t%201", CancelTransferRequest(RoleConsumer, "t 1", "0xa", "0xh").String())
	assert.Equal(t, "PUT /api/retailer/updateEthereumAddress", UpdateEthereumAddressRequest(RoleRetailer, "0xa").String())
}
