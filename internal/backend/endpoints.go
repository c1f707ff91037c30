package backend

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Flex accepts a JSON number or string and keeps its text.
// The backend is not consistent about prices and quantities.
type Flex string

func (f *Flex) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = Flex(s)
		return nil
	}
	*f = Flex(b)
	return nil
}

func (f Flex) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseFloat(string(f), 64); err == nil {
		return []byte(f), nil
	}
	return json.Marshal(string(f))
}

// Product is the backend's product document.
type Product struct {
	ID             string   `json:"_id"`
	BatchNumber    string   `json:"batchNumber"`
	Type           string   `json:"type"`
	Origin         string   `json:"origin"`
	ProductionDate string   `json:"productionDate"`
	Quantity       Flex     `json:"quantity"`
	Price          Flex     `json:"price"`
	Status         string   `json:"status,omitempty"`
	BlockchainID   string   `json:"blockchainId,omitempty"`
	Certifications []string `json:"certifications,omitempty"`
}

// ProductInput is the body of POST /registerProduct.
type ProductInput struct {
	BatchNumber    string   `json:"batchNumber"`
	Type           string   `json:"type"`
	Origin         string   `json:"origin"`
	ProductionDate string   `json:"productionDate"`
	Quantity       int64    `json:"quantity"`
	Price          string   `json:"price"`
	Certifications []string `json:"certifications,omitempty"`
}

// DecodeProduct accepts either {"product": {...}} or the bare document.
func DecodeProduct(resp *Response) (*Product, error) {
	var wrapped struct {
		Product *Product `json:"product"`
	}
	if err := resp.Decode(&wrapped); err == nil && wrapped.Product != nil && wrapped.Product.ID != "" {
		return wrapped.Product, nil
	}
	var p Product
	if err := resp.Decode(&p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, fmt.Errorf("product reply has no _id")
	}
	return &p, nil
}

func seg(s string) string {
	return url.PathEscape(s)
}

// RegisterProductRequest creates the backend record of a new product.
func RegisterProductRequest(in ProductInput) Request {
	return Request{Role: RoleFarmer, Method: http.MethodPost, Path: "/registerProduct", Body: in}
}

// LinkBlockchainRequest stores the on-chain id and creation tx of a product.
func LinkBlockchainRequest(productID, blockchainID, txHash string) Request {
	return Request{
		Role:   RoleFarmer,
		Method: http.MethodPut,
		Path:   "/products/" + seg(productID) + "/blockchain",
		Body:   map[string]string{"blockchainId": blockchainID, "txHash": txHash},
	}
}

// GetProductRequest reads one product as role sees it.
func GetProductRequest(role, productID string) Request {
	return Request{Role: role, Method: http.MethodGet, Path: "/products/" + seg(productID)}
}

// UpdateStatusRequest records a status change. Farmers and the other roles
// use different routes for it.
func UpdateStatusRequest(role, productID, status, txHash string) Request {
	body := map[string]string{"status": status, "blockchainTxHash": txHash}
	if role == RoleFarmer {
		return Request{Role: role, Method: http.MethodPut, Path: "/products/" + seg(productID) + "/status", Body: body}
	}
	return Request{Role: role, Method: http.MethodPut, Path: "/updateProductStatus/" + seg(productID), Body: body}
}

// UpdateProductRequest stores edited product details.
func UpdateProductRequest(role, productID string, info map[string]interface{}, txHash string) Request {
	body := make(map[string]interface{}, len(info)+1)
	for k, v := range info {
		body[k] = v
	}
	if txHash != "" {
		body["blockchainTxHash"] = txHash
	}
	return Request{Role: role, Method: http.MethodPut, Path: "/updateProduct/" + seg(productID), Body: body}
}

// RecipientField is the body key naming the transfer recipient for role.
func RecipientField(role string) string {
	switch role {
	case RoleFarmer:
		return "distributorId"
	case RoleDistributor:
		return "retailerId"
	default:
		return "consumerId"
	}
}

// InitiateTransferRequest records a transfer started on chain.
func InitiateTransferRequest(role, productID, recipient string, quantity int64, txHash string) Request {
	return Request{
		Role:   role,
		Method: http.MethodPost,
		Path:   "/initiateTransfer",
		Body: map[string]interface{}{
			"productId":          productID,
			RecipientField(role): recipient,
			"quantity":           quantity,
			"blockchainTxHash":   txHash,
		},
	}
}

// AcceptTransferRequest marks a transfer accepted by ethereumAddress.
func AcceptTransferRequest(role, transferID, ethereumAddress, txHash string) Request {
	return Request{
		Role:   role,
		Method: http.MethodPost,
		Path:   "/acceptTransfer/" + seg(transferID),
		Body:   map[string]string{"ethereumAddress": ethereumAddress, "blockchainTxHash": txHash},
	}
}

// CancelTransferRequest marks a transfer cancelled by its initiator.
func CancelTransferRequest(role, transferID, initiator, txHash string) Request {
	return Request{
		Role:   role,
		Method: http.MethodPost,
		Path:   "/cancelTransfer/" + seg(transferID),
		Body:   map[string]string{"initiatorAddress": initiator, "blockchainTxHash": txHash},
	}
}

// SyncProductRequest asks the backend to refresh a product from the chain.
func SyncProductRequest(role, productID, ethereumAddress string) Request {
	body := map[string]string{}
	if ethereumAddress != "" {
		body["ethereumAddress"] = ethereumAddress
	}
	return Request{Role: role, Method: http.MethodPost, Path: "/syncProduct/" + seg(productID), Body: body}
}

// UpdateEthereumAddressRequest links the user's wallet address.
func UpdateEthereumAddressRequest(role, address string) Request {
	return Request{
		Role:   role,
		Method: http.MethodPut,
		Path:   "/updateEthereumAddress",
		Body:   map[string]string{"ethereumAddress": address},
	}
}

// PendingTransfersRequest lists the transfers the backend considers open.
func PendingTransfersRequest(role string) Request {
	return Request{Role: role, Method: http.MethodGet, Path: "/pendingTransfers"}
}

// RegisterProduct posts a new product and returns the stored document.
func (c *Client) RegisterProduct(ctx context.Context, in ProductInput) (*Product, error) {
	resp, err := c.Do(ctx, RegisterProductRequest(in))
	if err != nil {
		return nil, err
	}
	return DecodeProduct(resp)
}

// GetProduct reads a product document.
func (c *Client) GetProduct(ctx context.Context, role, productID string) (*Product, error) {
	resp, err := c.Do(ctx, GetProductRequest(role, productID))
	if err != nil {
		return nil, err
	}
	return DecodeProduct(resp)
}

// PendingTransfers returns the backend's open transfers as raw documents.
func (c *Client) PendingTransfers(ctx context.Context, role string) ([]map[string]interface{}, error) {
	resp, err := c.Do(ctx, PendingTransfersRequest(role))
	if err != nil {
		return nil, err
	}
	body := bytes.TrimSpace(resp.Body)
	if len(body) > 0 && body[0] == '[' {
		var list []map[string]interface{}
		return list, resp.Decode(&list)
	}
	var wrapped struct {
		Transfers []map[string]interface{} `json:"transfers"`
	}
	return wrapped.Transfers, resp.Decode(&wrapped)
}
