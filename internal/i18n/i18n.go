// internal/i18n/i18n.go
package i18n

import (
	"fmt"
	"sync"
)

type I18n struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	defaultLang  string
}

var instance *I18n
var once sync.Once

// Catalogs are compiled in so the binary is self-contained.
var locales = map[string]map[string]string{
	"en": {
		KeyAuthRequired:           "Authentication required",
		KeyAuthInvalidToken:       "Invalid authentication token",
		KeyAuthTokenExpired:       "Authentication token expired",
		KeyAuthInvalidCredentials: "Invalid email or password",
		KeyAuthLoginSuccess:       "Login successful",
		KeyRegistryInitialized:    "Registry initialized",
		KeyClassCreated:           "Agent class registered",
		KeyClassNotFound:          "Agent class not found",
		KeyClassExists:            "Agent class already exists",
		KeyPaymentsUpdated:        "Payment allow-list updated",
		KeyLicenseIssued:          "License issued",
		KeyLicenseNotFound:        "License not found",
		KeyTraitsUpdated:          "License traits updated",
		KeyLicenseDeployed:        "License deployed into custody",
		KeyLicenseStopped:         "License released from custody",
		KeyDeployNotFound:         "Deployment not found",
		KeyFeeUpdated:             "Custody fee updated",
		KeyFeesWithdrawn:          "Fees withdrawn",
		KeyTransferComplete:       "Transfer complete",
		KeyApprovalSet:            "Allowance set",
		KeyAdminActionSuccess:     "Action completed successfully",
		KeyAdminAccessDenied:      "Admin access denied",
		KeyValidationRequired:     "%s is required",
		KeyValidationInvalid:      "Invalid %s",
	},
	"zh_TW": {
		KeyAuthRequired:           "需要身份驗證",
		KeyAuthInvalidToken:       "無效的驗證權杖",
		KeyAuthTokenExpired:       "驗證權杖已過期",
		KeyAuthInvalidCredentials: "電子郵件或密碼錯誤",
		KeyAuthLoginSuccess:       "登入成功",
		KeyRegistryInitialized:    "註冊中心已初始化",
		KeyClassCreated:           "代理類別已註冊",
		KeyClassNotFound:          "找不到代理類別",
		KeyClassExists:            "代理類別已存在",
		KeyPaymentsUpdated:        "付款代幣白名單已更新",
		KeyLicenseIssued:          "授權已發行",
		KeyLicenseNotFound:        "找不到授權",
		KeyTraitsUpdated:          "授權屬性已更新",
		KeyLicenseDeployed:        "授權已託管部署",
		KeyLicenseStopped:         "授權已解除託管",
		KeyDeployNotFound:         "找不到部署紀錄",
		KeyFeeUpdated:             "託管費用已更新",
		KeyFeesWithdrawn:          "費用已提領",
		KeyTransferComplete:       "轉帳完成",
		KeyApprovalSet:            "額度已設定",
		KeyAdminActionSuccess:     "操作成功",
		KeyAdminAccessDenied:      "拒絕管理員存取",
		KeyValidationRequired:     "%s 為必填",
		KeyValidationInvalid:      "無效的 %s",
	},
}

func Initialize() error {
	once.Do(func() {
		instance = &I18n{
			translations: locales,
			defaultLang:  "en",
		}
	})
	return nil
}

func (i *I18n) T(lang, key string, args ...interface{}) string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if translations, exists := i.translations[lang]; exists {
		if text, exists := translations[key]; exists {
			if len(args) > 0 {
				return fmt.Sprintf(text, args...)
			}
			return text
		}
	}

	// Fallback to default language
	if lang != i.defaultLang {
		if translations, exists := i.translations[i.defaultLang]; exists {
			if text, exists := translations[key]; exists {
				if len(args) > 0 {
					return fmt.Sprintf(text, args...)
				}
				return text
			}
		}
	}

	// Return key if no translation found
	return key
}

// Global functions
func T(lang, key string, args ...interface{}) string {
	if instance == nil {
		Initialize()
	}
	return instance.T(lang, key, args...)
}

func GetSupportedLanguages() []string {
	if instance == nil {
		return []string{"en"}
	}

	instance.mu.RLock()
	defer instance.mu.RUnlock()

	langs := make([]string, 0, len(instance.translations))
	for lang := range instance.translations {
		langs = append(langs, lang)
	}
	return langs
}
