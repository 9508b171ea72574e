package services

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// VNPAY wire constants. vnp_Amount carries VND multiplied by 100, the
// gateway's fixed scale factor.
const (
	vnpVersion     = "2.1.0"
	vnpCommandPay  = "pay"
	vnpCurrCode    = "VND"
	vnpLocale      = "vn"
	vnpOrderType   = "other"
	vnpDateLayout  = "20060102150405"
	VNPAmountScale = 100

	// Both must read "00" before a callback is applied to the ledger.
	VNPResponseCodeSuccess      = "00"
	VNPTransactionStatusSuccess = "00"
)

// VNPayService signs outbound pay URLs and verifies inbound callbacks against
// the shared hash secret. It is a plain HTTP-protocol client; VNPAY has no SDK.
type VNPayService struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

func NewVNPayService() *VNPayService {
	return &VNPayService{
		TmnCode:    os.Getenv("VNPAY_TMN_CODE"),
		HashSecret: os.Getenv("VNPAY_HASH_SECRET"),
		PayURL:     os.Getenv("VNPAY_PAY_URL"),
		ReturnURL:  os.Getenv("VNPAY_RETURN_URL"),
	}
}

// EncodeOrderInfo packs the bill id, and for partial payments the tenant's
// intended principal, into the free-text order-info field. The textual format
// is a compatibility contract with existing gateway configuration: the bill id
// rides as "#<id>" and partial payments append "|originalAmount:<decimal>".
func EncodeOrderInfo(billID uint, principal float64, partial bool) string {
	info := fmt.Sprintf("Thanh toan hoa don #%d", billID)
	if partial {
		info += "|originalAmount:" + strconv.FormatFloat(principal, 'f', -1, 64)
	}
	return info
}

// DecodeOrderInfo reverses EncodeOrderInfo. hasOriginal reports whether the
// originalAmount field was present; callers fall back to the charged total
// when it is absent.
func DecodeOrderInfo(info string) (billID uint, originalAmount float64, hasOriginal bool, err error) {
	hash := strings.Index(info, "#")
	if hash < 0 || hash+1 >= len(info) {
		return 0, 0, false, NewComputationError("order info %q carries no bill reference", info)
	}

	digits := info[hash+1:]
	end := 0
	for end < len(digits) && digits[end] >= '0' && digits[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, 0, false, NewComputationError("order info %q carries no bill id after '#'", info)
	}
	id, err := strconv.ParseUint(digits[:end], 10, 32)
	if err != nil {
		return 0, 0, false, NewComputationError("order info %q: unparseable bill id: %v", info, err)
	}

	const marker = "|originalAmount:"
	if idx := strings.Index(info, marker); idx >= 0 {
		raw := info[idx+len(marker):]
		if cut := strings.Index(raw, "|"); cut >= 0 {
			raw = raw[:cut]
		}
		amount, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return 0, 0, false, NewComputationError("order info %q: unparseable originalAmount: %v", info, err)
		}
		return uint(id), amount, true, nil
	}

	return uint(id), 0, false, nil
}

// BuildPaymentURL assembles and signs the redirect URL for a payment of
// totalCharge VND (principal plus any gateway-side partial-payment fee).
func (s *VNPayService) BuildPaymentURL(billID uint, principal, totalCharge float64, partial bool, clientIP string, now time.Time) string {
	txnRef := fmt.Sprintf("%d-%d", billID, now.Unix())

	params := url.Values{}
	params.Set("vnp_Version", vnpVersion)
	params.Set("vnp_Command", vnpCommandPay)
	params.Set("vnp_TmnCode", s.TmnCode)
	params.Set("vnp_Amount", strconv.FormatInt(int64(totalCharge*VNPAmountScale), 10))
	params.Set("vnp_CreateDate", now.Format(vnpDateLayout))
	params.Set("vnp_CurrCode", vnpCurrCode)
	params.Set("vnp_IpAddr", clientIP)
	params.Set("vnp_Locale", vnpLocale)
	params.Set("vnp_OrderInfo", EncodeOrderInfo(billID, principal, partial))
	params.Set("vnp_OrderType", vnpOrderType)
	params.Set("vnp_ReturnUrl", s.ReturnURL)
	params.Set("vnp_TxnRef", txnRef)

	query := canonicalQuery(params)
	secureHash := s.sign(query)
	return s.PayURL + "?" + query + "&vnp_SecureHash=" + secureHash
}

// VerifyCallback recomputes the secure hash over the callback's parameters and
// compares it with the one the gateway sent. Both return-redirects and IPNs go
// through here before anything else looks at the payload.
func (s *VNPayService) VerifyCallback(query url.Values) error {
	received := query.Get("vnp_SecureHash")
	if received == "" {
		return &SignatureError{Reason: "vnp_SecureHash missing"}
	}

	params := url.Values{}
	for key, vals := range query {
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		if len(vals) > 0 {
			params.Set(key, vals[0])
		}
	}

	expected := s.sign(canonicalQuery(params))
	if !hmac.Equal([]byte(strings.ToLower(received)), []byte(expected)) {
		return &SignatureError{Reason: "hash mismatch"}
	}
	return nil
}

// GatewayCallback is the verified, decoded callback payload.
type GatewayCallback struct {
	TxnRef            string
	TransactionNo     string
	ResponseCode      string
	TransactionStatus string
	OrderInfo         string
	BankCode          string
	// Amount is the total charged in VND, already divided back down from the
	// gateway's x100 integer encoding.
	Amount float64
}

// Success reports whether both gateway status codes indicate a settled payment.
func (cb *GatewayCallback) Success() bool {
	return cb.ResponseCode == VNPResponseCodeSuccess && cb.TransactionStatus == VNPTransactionStatusSuccess
}

// ParseCallback extracts the fields the reconciler needs. Call VerifyCallback
// first; this does no signature checking.
func ParseCallback(query url.Values) (*GatewayCallback, error) {
	rawAmount := query.Get("vnp_Amount")
	minorUnits, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil {
		return nil, NewComputationError("unparseable vnp_Amount %q: %v", rawAmount, err)
	}

	return &GatewayCallback{
		TxnRef:            query.Get("vnp_TxnRef"),
		TransactionNo:     query.Get("vnp_TransactionNo"),
		ResponseCode:      query.Get("vnp_ResponseCode"),
		TransactionStatus: query.Get("vnp_TransactionStatus"),
		OrderInfo:         query.Get("vnp_OrderInfo"),
		BankCode:          query.Get("vnp_BankCode"),
		Amount:            float64(minorUnits) / VNPAmountScale,
	}, nil
}

// canonicalQuery renders params as the sorted, URL-encoded string VNPAY hashes.
func canonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(key)))
	}
	return b.String()
}

func (s *VNPayService) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(s.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
