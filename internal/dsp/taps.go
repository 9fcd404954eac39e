package dsp

// Anti-aliasing FIR tables used between bands of the XT32 decimation banks.
// Each table is symmetric (linear phase) and designed for a factor-4 decimator.

var sub29Taps = []float64{
	-0.0000068090826, -4.5359936e-8, 0.00010496614, 0.0005359394, 0.0017366897,
	0.0043950975, 0.00936928, 0.017480986, 0.029199528, 0.04430621,
	0.061674833, 0.07929655, 0.094606727, 0.1050576, 0.10877161,
	0.1050576, 0.094606727, 0.07929655, 0.061674833, 0.04430621,
	0.029199528, 0.017480986, 0.00936928, 0.0043950975, 0.0017366897,
	0.0005359394, 0.00010496614, -4.5359936e-8, -0.0000068090826,
}

var sub37Taps = []float64{
	-0.000026230078, -0.00013839548, -0.00045447858, -0.0011429883, -0.0023770225,
	-0.0042346125, -0.0065577077, -0.0088115167, -0.010010772, -0.008782894,
	-0.0036095164, 0.0067711435, 0.02289046, 0.04414973, 0.06865209,
	0.093375608, 0.11469775, 0.12916237, 0.1342851, 0.12916237,
	0.11469775, 0.093375608, 0.06865209, 0.04414973, 0.02289046,
	0.0067711435, -0.0036095164, -0.008782894, -0.010010772, -0.0088115167,
	-0.0065577077, -0.0042346125, -0.0023770225, -0.0011429883, -0.00045447858,
	-0.00013839548, -0.000026230078,
}

var sub93Taps = []float64{
	0.000004904671, 0.000016451735, 0.000035466823, 0.000054780343, 0.000057436635,
	0.000019883537, -0.00007663135, -0.00022867938, -0.0003953652, -0.0004970615,
	-0.00043803814, -0.00015296187, 0.00033801072, 0.00089421676, 0.0012704487,
	0.0011992522, 0.0005233042, -0.00067407207, -0.0020127299, -0.0028939669,
	-0.0027228948, -0.0012104996, 0.0013740772, 0.004148222, 0.005850492,
	0.005338624, 0.0021824592, -0.0029139882, -0.0081179589, -0.011018342,
	-0.0096052159, -0.0033266835, 0.0062539442, 0.015607043, 0.020322932,
	0.016872915, 0.0044270838, -0.014038938, -0.031958703, -0.040876575,
	-0.033219177, -0.0052278917, 0.04104016, 0.097502038, 0.15189469,
	0.19119503, 0.20552149, 0.19119503, 0.15189469, 0.097502038,
	0.04104016, -0.0052278917, -0.033219177, -0.040876575, -0.031958703,
	-0.014038938, 0.0044270838, 0.016872915, 0.020322932, 0.015607043,
	0.0062539442, -0.0033266835, -0.0096052159, -0.011018342, -0.0081179589,
	-0.0029139882, 0.0021824592, 0.005338624, 0.005850492, 0.004148222,
	0.0013740772, -0.0012104996, -0.0027228948, -0.0028939669, -0.0020127299,
	-0.00067407207, 0.0005233042, 0.0011992522, 0.0012704487, 0.00089421676,
	0.00033801072, -0.00015296187, -0.00043803814, -0.0004970615, -0.0003953652,
	-0.00022867938, -0.00007663135, 0.000019883537, 0.000057436635, 0.000054780343,
	0.000035466823, 0.000016451735, 0.000004904671,
}

var sat129Taps = []float64{
	0.0000043782347, 0.000014723354, 0.000032770109, 0.000054528296, 0.000068608439,
	0.00005722275, 0.0000025561833, -0.0001022896, -0.00024198946, -0.0003741896,
	-0.0004376953, -0.00037544663, -0.00016613922, 0.00014951751, 0.00046477153,
	0.000636138, 0.0005427991, 0.00015503204, -0.0004217047, -0.00095836946,
	-0.0011810855, -0.00089615857, -0.00010969268, 0.0009218459, 0.0017551293,
	0.0019349628, 0.0012194271, -0.00024770317, -0.0019181528, -0.0030198381,
	-0.0028912309, -0.0013345525, 0.0011865027, 0.0036375371, 0.0048077558,
	0.0038727189, 0.00087827817, -0.0031111876, -0.0063393954, -0.0070888256,
	-0.0045305756, 0.00070328976, 0.006557314, 0.010292898, 0.009696761,
	0.0042538098, -0.0042899773, -0.012354134, -0.01590999, -0.012335026,
	-0.0019397299, 0.0116079, 0.022352377, 0.024387382, 0.014624386,
	-0.0051601734, -0.028005365, -0.043577183, -0.04166761, -0.016186262,
	0.031879943, 0.09379751, 0.15517053, 0.20020825, 0.21674114,
	0.20020825, 0.15517053, 0.09379751, 0.031879943, -0.016186262,
	-0.04166761, -0.043577183, -0.028005365, -0.0051601734, 0.014624386,
	0.024387382, 0.022352377, 0.0116079, -0.0019397299, -0.012335026,
	-0.01590999, -0.012354134, -0.0042899773, 0.0042538098, 0.009696761,
	0.010292898, 0.006557314, 0.00070328976, -0.0045305756, -0.0070888256,
	-0.0063393954, -0.0031111876, 0.00087827817, 0.0038727189, 0.0048077558,
	0.0036375371, 0.0011865027, -0.0013345525, -0.0028912309, -0.0030198381,
	-0.0019181528, -0.00024770317, 0.0012194271, 0.0019349628, 0.0017551293,
	0.0009218459, -0.00010969268, -0.00089615857, -0.0011810855, -0.00095836946,
	-0.0004217047, 0.00015503204, 0.0005427991, 0.000636138, 0.00046477153,
	0.00014951751, -0.00016613922, -0.00037544663, -0.0004376953, -0.0003741896,
	-0.00024198946, -0.0001022896, 0.0000025561833, 0.00005722275, 0.000068608439,
	0.000054528296, 0.000032770109, 0.000014723354, 0.0000043782347,
}
