package valueobject

import "fmt"

// ResponseCode is a status code returned by the remote billing service.
type ResponseCode int

const (
	ResponseOK                 ResponseCode = 0
	ResponseUserCanceled       ResponseCode = 1
	ResponseServiceUnavailable ResponseCode = 2
	ResponseBillingUnavailable ResponseCode = 3
	ResponseItemUnavailable    ResponseCode = 4
	ResponseDeveloperError     ResponseCode = 5
	ResponseError              ResponseCode = 6
	ResponseItemAlreadyOwned   ResponseCode = 7
	ResponseItemNotOwned       ResponseCode = 8
)

var responseCodeNames = map[ResponseCode]string{
	ResponseOK:                 "BILLING_RESPONSE_RESULT_OK",
	ResponseUserCanceled:       "BILLING_RESPONSE_RESULT_USER_CANCELED",
	ResponseServiceUnavailable: "BILLING_RESPONSE_RESULT_SERVICE_UNAVAILABLE",
	ResponseBillingUnavailable: "BILLING_RESPONSE_RESULT_BILLING_UNAVAILABLE",
	ResponseItemUnavailable:    "BILLING_RESPONSE_RESULT_ITEM_UNAVAILABLE",
	ResponseDeveloperError:     "BILLING_RESPONSE_RESULT_DEVELOPER_ERROR",
	ResponseError:              "BILLING_RESPONSE_RESULT_ERROR",
	ResponseItemAlreadyOwned:   "BILLING_RESPONSE_RESULT_ITEM_ALREADY_OWNED",
	ResponseItemNotOwned:       "BILLING_RESPONSE_RESULT_ITEM_NOT_OWNED",
}

// String returns the platform constant name, or the raw code when unknown
func (c ResponseCode) String() string {
	if name, ok := responseCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("BILLING_RESPONSE_RESULT_UNKNOWN(%d)", int(c))
}

// IsOK returns true if the code signals success
func (c ResponseCode) IsOK() bool {
	return c == ResponseOK
}
