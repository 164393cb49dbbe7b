package messagevalidator

import (
	"mt5-connect/internal/messages"

	"github.com/go-playground/validator/v10"
)

type MT5ConnectMessageValidator struct {
	validator *validator.Validate
}

func New() *MT5ConnectMessageValidator {
	v := &MT5ConnectMessageValidator{
		validator: validator.New(),
	}
	v.RegisterValidations()
	return v
}

// RegisterValidations registers custom validation rules for mt5-connect messages.
// It adds the following validation rules:
//   - "messagetype_enum": Validates that a MessageType field contains one of the supported message types
//   - "platform_enum": Validates that a Platform field contains one of the supported trading platforms
//   - "tradeaction_enum": Validates that a trade action field contains a supported direction
func (msgvalidator *MT5ConnectMessageValidator) RegisterValidations() {
	msgvalidator.validator.RegisterValidation("messagetype_enum", func(fl validator.FieldLevel) bool {
		mt, ok := fl.Field().Interface().(messages.MessageType)
		if !ok {
			return false
		}
		switch mt {
		case
			messages.TypeConnect,
			messages.TypeAccountInfo,
			messages.TypeAccountSymbols,
			messages.TypeHistorical,
			messages.TypePlaceOrder,
			messages.TypeClosePosition,
			messages.TypeSymbolInfo,
			messages.TypeDailyReport,
			messages.TypeError,
			messages.TypeDisconnect:
			return true
		default:
			return false
		}
	})

	msgvalidator.validator.RegisterValidation("platform_enum", func(fl validator.FieldLevel) bool {
		mt, ok := fl.Field().Interface().(messages.Platform)
		if !ok {
			return false
		}
		switch mt {
		case messages.MT5:
			return true
		default:
			return false
		}
	})

	msgvalidator.validator.RegisterValidation("tradeaction_enum", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case messages.ActionBuy, messages.ActionSell:
			return true
		default:
			return false
		}
	})
}

// Validate runs the registered rules against a message or payload struct.
func (msgvalidator *MT5ConnectMessageValidator) Validate(msg interface{}) error {
	return msgvalidator.validator.Struct(msg)
}
